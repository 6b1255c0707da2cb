package awsutil

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rds/rdsutils"

	"github.com/pgtelemetry/collector/config"
)

func GetAwsSession(config config.ServerConfig) (*session.Session, error) {
	var creds *credentials.Credentials

	if config.AwsAccessKeyID != "" {
		creds = credentials.NewStaticCredentials(config.AwsAccessKeyID, config.AwsSecretAccessKey, "")
	}

	return session.NewSession(&aws.Config{
		Credentials:                   creds,
		CredentialsChainVerboseErrors: aws.Bool(true),
		Region:                        aws.String(config.AwsRegion),
	})
}

// BuildIamAuthToken - Short-lived RDS IAM authentication token, used in place of a password
func BuildIamAuthToken(config config.ServerConfig) (string, error) {
	sess, err := GetAwsSession(config)
	if err != nil {
		return "", err
	}

	return rdsutils.BuildAuthToken(
		fmt.Sprintf("%s:%d", config.GetDbHost(), config.GetDbPortOrDefault()),
		config.AwsRegion,
		config.GetDbUsername(),
		sess.Config.Credentials,
	)
}
