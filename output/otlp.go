package output

import (
	"google.golang.org/protobuf/proto"

	"github.com/pgtelemetry/collector/output/transform"
	"github.com/pgtelemetry/collector/state"
)

// OTLPAdapter encodes the snapshot as an OTLP metrics export request (protobuf)
type OTLPAdapter struct{}

func NewOTLPAdapter() *OTLPAdapter {
	return &OTLPAdapter{}
}

func (a *OTLPAdapter) Name() string {
	return "otlp"
}

func (a *OTLPAdapter) Serialize(snapshot state.MultiInstanceSnapshot) ([]byte, string, error) {
	data, err := proto.Marshal(transform.SnapshotToOTLP(snapshot))
	if err != nil {
		return nil, "", err
	}
	return data, "application/x-protobuf", nil
}
