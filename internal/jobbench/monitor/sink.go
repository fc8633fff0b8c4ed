package monitor

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"
)

// SampleWriter persists samples as they are taken.
type SampleWriter interface {
	Write(sample Sample) error
}

// CSVSink appends samples to a CSV file. Every row is flushed and synced before Write returns, so the file holds
// every completed sample even if the process is killed.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// CreateCSVSink truncates path and writes the header.
func CreateCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sink := &CSVSink{file: f, writer: csv.NewWriter(f)}
	if err := sink.writeRow(csvHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	return sink, nil
}

func (s *CSVSink) Write(sample Sample) error {
	return s.writeRow(sample.record())
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return errors.WithStack(err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(s.file.Sync())
}

func (s *CSVSink) Path() string {
	return s.file.Name()
}

func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		_ = s.file.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(s.file.Close())
}

// ReadSamples loads a CSV written by CSVSink.
func ReadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return readSamples(f)
}

func readSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(header) != len(csvHeader) || header[0] != csvHeader[0] {
		return nil, errors.Errorf("unexpected header %v", header)
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		sample, err := parseRecord(record)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", line)
		}
		samples = append(samples, sample)
	}
}
