package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalData_RoundTripsEachVariant(t *testing.T) {
	cases := []Data{
		UsageData{Feature: "search", Action: "click", Count: 3},
		PerformanceData{Metric: "latency_ms", Value: 12.5, Unit: "ms"},
		ErrorData{Message: "boom", Fatal: true},
		BusinessData{Metric: "mrr", Value: 99.99, Currency: "USD"},
		EmptyData{},
		KeyValueData{"k": "v"},
		CustomData{Name: "widget_dragged", Payload: []byte(`{"x":1}`)},
	}

	for _, d := range cases {
		raw, err := marshalData(d)
		require.NoError(t, err, "%T", d)

		got, err := unmarshalData(raw)
		require.NoError(t, err, "%T", d)
		assert.Equal(t, d, got)
		assert.Equal(t, d.Kind(), got.Kind())
	}
}

func TestUnmarshalData_EmptyRawIsEmptyData(t *testing.T) {
	got, err := unmarshalData(nil)
	require.NoError(t, err)
	assert.Equal(t, DataKindEmpty, got.Kind())
}

func TestMarshalData_NilIsEmptyData(t *testing.T) {
	raw, err := marshalData(nil)
	require.NoError(t, err)
	got, err := unmarshalData(raw)
	require.NoError(t, err)
	assert.Equal(t, DataKindEmpty, got.Kind())
}
