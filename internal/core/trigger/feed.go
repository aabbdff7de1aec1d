package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/types"
)

// MeasurementHandler consumes decoded measurements. PointTrigger implements it.
type MeasurementHandler interface {
	OnMeasurement(m types.Measurement) bool
}

// DecodeMeasurements parses a feed payload holding one JSON measurement
// object or an array of them.
func DecodeMeasurements(data []byte) ([]types.Measurement, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty measurement message")
	}

	if trimmed[0] == '[' {
		var batch []types.Measurement
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("decode measurements: %w", err)
		}
		return batch, nil
	}

	var m types.Measurement
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("decode measurement: %w", err)
	}
	return []types.Measurement{m}, nil
}

// feedBase is shared by the transport-specific feeds.
type feedBase struct {
	handler MeasurementHandler
	logger  *slog.Logger
}

// HandleMessage decodes data and forwards each measurement, returning how
// many were forwarded.
func (f *feedBase) HandleMessage(data []byte) (int, error) {
	batch, err := DecodeMeasurements(data)
	if err != nil {
		return 0, err
	}
	for _, m := range batch {
		f.handler.OnMeasurement(m)
	}
	return len(batch), nil
}

func (f *feedBase) receive(channel string, data []byte) {
	if _, err := f.HandleMessage(data); err != nil {
		f.logger.Warn("invalid measurement message", slog.String("channel", channel), logging.Error(err))
	}
}
