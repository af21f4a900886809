package parser

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine-health-monitor/internal/models"
)

func TestParseCSV(t *testing.T) {
	log, hook := test.NewNullLogger()
	input := `vehicle_id,timestamp,engine_rpm,lub_oil_pressure,fuel_pressure,coolant_pressure,lub_oil_temp,coolant_temp,battery_voltage,condition
VEH-001,2026-01-02T10:00:00Z,1100,3.6,10.5,3.7,86,84,12.6,Healthy
VEH-002,2026-01-02T10:00:01Z,1100,3.6,,3.7,86,84,12.6,
VEH-003,2026-01-02T10:00:02Z,abc,3.6,10.5,3.7,86,84,12.6,
VEH-004,2026-01-02T10:00:03Z,2900,2.0,5.0,0.5,105,115,11.0,Critical
`
	recs, err := NewParser("csv", log).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "VEH-001", recs[0].VehicleID)
	assert.Equal(t, models.LabelHealthy, recs[0].Condition)
	assert.Equal(t, models.SensorReading{
		EngineRPM:       1100,
		LubOilPressure:  3.6,
		FuelPressure:    10.5,
		CoolantPressure: 3.7,
		LubOilTemp:      86,
		CoolantTemp:     84,
		BatteryVoltage:  12.6,
	}, recs[0].Reading)
	assert.Equal(t, "VEH-004", recs[1].VehicleID)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestParseCSVMissingColumn(t *testing.T) {
	log, _ := test.NewNullLogger()
	input := "engine_rpm,lub_oil_pressure\n1100,3.6\n"
	_, err := NewParser("csv", log).Parse(strings.NewReader(input))
	assert.Error(t, err)
}

func TestParseJSONArrayAndLines(t *testing.T) {
	log, _ := test.NewNullLogger()
	array := `[
	{"vehicle_id":"A","engine_rpm":1100,"lub_oil_pressure":3.6,"fuel_pressure":10.5,"coolant_pressure":3.7,"lub_oil_temp":86,"coolant_temp":84,"battery_voltage":12.6},
	{"vehicle_id":"B","engine_rpm":1100,"lub_oil_pressure":3.6}
]`
	recs, err := NewParser("json", log).Parse(strings.NewReader(array))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A", recs[0].VehicleID)

	lines := `{"vehicle_id":"A","engine_rpm":1100,"lub_oil_pressure":3.6,"fuel_pressure":10.5,"coolant_pressure":3.7,"lub_oil_temp":86,"coolant_temp":84,"battery_voltage":12.6}
not json
{"vehicle_id":"C","engine_rpm":900,"lub_oil_pressure":0,"fuel_pressure":0,"coolant_pressure":0,"lub_oil_temp":0,"coolant_temp":0,"battery_voltage":0}
`
	recs, err = NewParser("json", log).Parse(strings.NewReader(lines))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "C", recs[1].VehicleID)
	assert.Equal(t, 0.0, recs[1].Reading.BatteryVoltage)
}

func TestParseJSONIndentedArraySkipsBadElement(t *testing.T) {
	log, hook := test.NewNullLogger()
	array := `[
  {
    "vehicle_id": "VEH-001",
    "engine_rpm": 1100,
    "lub_oil_pressure": 3.6,
    "fuel_pressure": 10.5,
    "coolant_pressure": 3.7,
    "lub_oil_temp": 86,
    "coolant_temp": 84,
    "battery_voltage": 12.6
  },
  {
    "vehicle_id": "VEH-002",
    "engine_rpm": "fast",
    "lub_oil_pressure": 3.6,
    "fuel_pressure": 10.5,
    "coolant_pressure": 3.7,
    "lub_oil_temp": 86,
    "coolant_temp": 84,
    "battery_voltage": 12.6
  }
]
`
	recs, err := NewParser("json", log).Parse(strings.NewReader(array))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "VEH-001", recs[0].VehicleID)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, 1, hook.LastEntry().Data["index"])

	_, err = NewParser("json", log).Parse(strings.NewReader(`[{"engine_rpm": 1100},`))
	assert.Error(t, err)
}

func TestParseLog(t *testing.T) {
	log, _ := test.NewNullLogger()
	input := `# timestamp|vehicle|rpm|oil_p|fuel_p|cool_p|oil_t|cool_t|batt
2026-01-02 10:00:00|VEH-001|1100|3.6|10.5|3.7|86|84|12.6
2026-01-02 10:00:01|VEH-001|1100|3.6
`
	recs, err := NewParser("log", log).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 12.6, recs[0].Reading.BatteryVoltage)
	assert.False(t, recs[0].Timestamp.IsZero())
}

func TestParseFileUnsupportedFormat(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "r.xml")
	require.NoError(t, os.WriteFile(path, []byte("<r/>"), 0o644))

	_, err := NewParser("xml", log).ParseFile(path)
	assert.Error(t, err)

	_, err = NewParser("csv", log).ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestDecodeReadingRejectsIncomplete(t *testing.T) {
	_, err := DecodeReading(strings.NewReader(`{"engine_rpm":1100,"battery_voltage":12}`))
	require.ErrorIs(t, err, ErrInvalidReading)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "fuel_pressure is required")
	assert.NotContains(t, verr.Problems, "engine_rpm is required")

	_, err = DecodeReading(strings.NewReader(`{`))
	assert.ErrorIs(t, err, ErrInvalidReading)
}

func TestValidateReading(t *testing.T) {
	ok := models.SensorReading{EngineRPM: 1100, LubOilPressure: 3.6, FuelPressure: 10.5, CoolantPressure: 3.7, LubOilTemp: 86, CoolantTemp: 84, BatteryVoltage: 12.6}
	assert.NoError(t, ValidateReading(ok))

	bad := ok
	bad.EngineRPM = 10001
	bad.FuelPressure = -1
	bad.CoolantTemp = math.NaN()
	err := ValidateReading(bad)
	require.ErrorIs(t, err, ErrInvalidReading)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestPayloadRoundTrip(t *testing.T) {
	rec := Record{
		VehicleID: "VEH-9",
		Reading:   models.SensorReading{EngineRPM: 800, LubOilPressure: 4, FuelPressure: 12, CoolantPressure: 3, LubOilTemp: 80, CoolantTemp: 82, BatteryVoltage: 13},
		Condition: models.LabelHealthy,
	}
	data, err := json.Marshal(rec.Payload())
	require.NoError(t, err)

	got, err := DecodeReading(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, rec.Reading, got.Reading)
	assert.Equal(t, rec.Condition, got.Condition)
}
