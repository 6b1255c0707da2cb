package output

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

// Sink delivers serialized payloads somewhere outside the process
type Sink interface {
	Name() string
	Write(ctx context.Context, payload Payload, collectedAt time.Time) error
}

// DirectorySink writes one file per adapter and cycle. Files appear atomically,
// they are written under a temporary name and renamed once complete.
type DirectorySink struct {
	Dir string
}

func NewDirectorySink(logger *util.Logger, dir string) (*DirectorySink, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	util.PruneTempFiles(logger, dir)
	return &DirectorySink{Dir: dir}, nil
}

func (s *DirectorySink) Name() string {
	return "directory"
}

func (s *DirectorySink) Write(ctx context.Context, payload Payload, collectedAt time.Time) error {
	filename := fmt.Sprintf("%s-%s.%s", collectedAt.UTC().Format("20060102T150405Z"), payload.Adapter, payload.Extension)

	tmpFile, err := os.CreateTemp(s.Dir, util.TempFilePrefix)
	if err != nil {
		return err
	}
	_, err = tmpFile.Write(payload.Data)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpFile.Name())
		return err
	}

	return os.Rename(tmpFile.Name(), filepath.Join(s.Dir, filename))
}

// HTTPSink POSTs each payload, zlib compressed, to a fixed URL
type HTTPSink struct {
	URL        string
	HTTPClient *http.Client
	Logger     *util.Logger
}

func NewHTTPSink(logger *util.Logger, url string) *HTTPSink {
	return &HTTPSink{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

func (s *HTTPSink) Name() string {
	return "http"
}

func (s *HTTPSink) Write(ctx context.Context, payload Payload, collectedAt time.Time) error {
	var compressedData bytes.Buffer
	w := zlib.NewWriter(&compressedData)
	w.Write(payload.Data)
	w.Close()

	s.Logger.PrintVerbose("Sending %s payload - size of request body: %s", payload.Adapter, humanize.Bytes(uint64(compressedData.Len())))

	req, err := http.NewRequestWithContext(ctx, "POST", s.URL, &compressedData)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set("Content-Encoding", "deflate")
	req.Header.Set("User-Agent", util.CollectorNameAndVersion)
	req.Header.Set("Pgtelemetry-Output", payload.Adapter)
	req.Header.Set("Pgtelemetry-Collected-At", strconv.FormatInt(collectedAt.Unix(), 10))

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("error when submitting: %s %s", resp.Status, bytes.TrimSpace(body))
	}

	return nil
}

// WriterSink copies payloads to a writer, used for --dry-run output on stdout
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) Name() string {
	return "stdout"
}

func (s *WriterSink) Write(ctx context.Context, payload Payload, collectedAt time.Time) error {
	_, err := s.W.Write(payload.Data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.W, "\n")
	return err
}

// Emit serializes the snapshot with every adapter and hands each payload to every sink.
//
// A failing adapter or sink does not stop the others; all failures are returned joined.
func Emit(ctx context.Context, logger *util.Logger, adapters []Adapter, sinks []Sink, snapshot state.MultiInstanceSnapshot) error {
	payloads, errs := SerializeAll(logger, adapters, snapshot)

	for _, payload := range payloads {
		for _, sink := range sinks {
			err := sink.Write(ctx, payload, snapshot.CollectedAt)
			if err != nil {
				logger.PrintError("Could not write %s output to %s: %s", payload.Adapter, sink.Name(), err)
				errs = append(errs, fmt.Errorf("sink %s (%s): %w", sink.Name(), payload.Adapter, err))
				continue
			}
			logger.PrintVerbose("Wrote %s output (%s) to %s", payload.Adapter, humanize.Bytes(uint64(len(payload.Data))), sink.Name())
		}
	}

	return errors.Join(errs...)
}
