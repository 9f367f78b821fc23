package events

import "encoding/json"

// DataKind discriminates the Data tagged-variant for (de)serialization and
// for the validator's Type/Data consistency check.
type DataKind string

const (
	DataKindUsage       DataKind = "usage"
	DataKindPerformance DataKind = "performance"
	DataKindError       DataKind = "error"
	DataKindBusiness    DataKind = "business"
	DataKindEmpty       DataKind = "empty"
	DataKindKeyValue    DataKind = "key_value"
	DataKindCustom      DataKind = "custom"
)

// Data is the payload carried by an Event. It is a closed set of concrete
// types implementing this interface (plus CustomData for open JSON
// payloads).
type Data interface {
	Kind() DataKind
}

// UsageData carries counters for usage/feature events.
type UsageData struct {
	Feature    string  `json:"feature"`
	Action     string  `json:"action"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	Count      int     `json:"count,omitempty"`
}

func (UsageData) Kind() DataKind { return DataKindUsage }

// PerformanceData carries a single timed/measured metric observation.
type PerformanceData struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
}

func (PerformanceData) Kind() DataKind { return DataKindPerformance }

// ErrorData carries error details. Message and Stack are the fields the
// redactor scrubs.
type ErrorData struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Code    string `json:"code,omitempty"`
	Fatal   bool   `json:"fatal,omitempty"`
}

func (ErrorData) Kind() DataKind { return DataKindError }

// BusinessData carries a monetary or business metric observation.
type BusinessData struct {
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

func (BusinessData) Kind() DataKind { return DataKindBusiness }

// EmptyData is used for events that carry no payload.
type EmptyData struct{}

func (EmptyData) Kind() DataKind { return DataKindEmpty }

// KeyValueData is a small open string map for ad-hoc event data.
type KeyValueData map[string]string

func (KeyValueData) Kind() DataKind { return DataKindKeyValue }

// CustomData carries an arbitrary JSON payload for Custom(name) event types.
type CustomData struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (CustomData) Kind() DataKind { return DataKindCustom }

// dataEnvelope is the wire format for Data: a discriminator plus the
// variant's own JSON encoding nested under "value".
type dataEnvelope struct {
	Kind  DataKind        `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func marshalData(d Data) (json.RawMessage, error) {
	if d == nil {
		d = EmptyData{}
	}
	value, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	env := dataEnvelope{Kind: d.Kind(), Value: value}
	return json.Marshal(env)
}

func unmarshalData(raw json.RawMessage) (Data, error) {
	if len(raw) == 0 {
		return EmptyData{}, nil
	}
	var env dataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case DataKindUsage:
		var v UsageData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindPerformance:
		var v PerformanceData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindError:
		var v ErrorData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindBusiness:
		var v BusinessData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindKeyValue:
		var v KeyValueData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindCustom:
		var v CustomData
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, err
		}
		return v, nil
	case DataKindEmpty, "":
		return EmptyData{}, nil
	default:
		return EmptyData{}, nil
	}
}
