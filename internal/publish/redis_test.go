package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine-health-monitor/internal/models"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "engine:VEH-1:reports", ReportsChannel("VEH-1"))
	assert.Equal(t, "engine:VEH-1:latest", LatestKey("VEH-1"))
	assert.Equal(t, "engine:unassigned:reports", ReportsChannel(""))
	assert.Equal(t, "engine:unassigned:latest", LatestKey(""))
}

func nominalReport(id string) models.HealthReport {
	return models.HealthReport{
		ID:        id,
		VehicleID: "VEH-1",
		Battery:   models.BatteryAssessment{Status: models.BatteryHealthy, Score: 90},
		Diagnostics: models.DiagnosticResult{
			AffectedSystems: []string{models.NoAffectedSystem},
			Advisories:      []string{models.NominalAdvisory},
		},
		Classifier: models.ClassifierAssessment{
			PredictedLabel: models.LabelHealthy,
			Probabilities:  map[models.HealthLabel]float64{models.LabelHealthy: 90},
		},
	}
}

// subscribe listens on the vehicle's report channel and the alerts channel
func subscribe(t *testing.T, ctx context.Context, addr string) *redis.PubSub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	sub := client.Subscribe(ctx, ReportsChannel("VEH-1"), alertsChannel)
	t.Cleanup(func() { sub.Close() })
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveTimeout(ctx, time.Second)
		require.NoError(t, err)
		require.IsType(t, &redis.Subscription{}, msg)
	}
	return sub
}

func receive(t *testing.T, ctx context.Context, sub *redis.PubSub) *redis.Message {
	t.Helper()
	msg, err := sub.ReceiveTimeout(ctx, time.Second)
	require.NoError(t, err)
	m, ok := msg.(*redis.Message)
	require.True(t, ok, "unexpected %T", msg)
	return m
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	pub, err := NewRedisPublisher(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer pub.Close()

	tests := []struct {
		name   string
		modify func(r *models.HealthReport)
		alert  bool
	}{
		{"nominal healthy", func(*models.HealthReport) {}, false},
		{"critical label", func(r *models.HealthReport) {
			r.Classifier.PredictedLabel = models.LabelCritical
		}, true},
		{"rule fired", func(r *models.HealthReport) {
			r.Diagnostics = models.DiagnosticResult{
				AffectedSystems: []string{"Electrical System (Battery)"},
				Advisories:      []string{"Check battery health and charging system."},
			}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscribe(t, ctx, mr.Addr())
			rep := nominalReport(tt.name)
			tt.modify(&rep)

			require.NoError(t, pub.Publish(ctx, rep))

			msg := receive(t, ctx, sub)
			assert.Equal(t, ReportsChannel("VEH-1"), msg.Channel)
			var got models.HealthReport
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
			assert.Equal(t, rep.ID, got.ID)

			if tt.alert {
				msg = receive(t, ctx, sub)
				assert.Equal(t, alertsChannel, msg.Channel)
			} else {
				_, err := sub.ReceiveTimeout(ctx, 200*time.Millisecond)
				assert.Error(t, err)
			}

			latest, err := mr.Get(LatestKey("VEH-1"))
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal([]byte(latest), &got))
			assert.Equal(t, rep.ID, got.ID)
			assert.Equal(t, latestTTL, mr.TTL(LatestKey("VEH-1")))
		})
	}
}

func TestPublishFailsWhenServerGone(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	pub, err := NewRedisPublisher(ctx, addr, "", 0)
	require.NoError(t, err)
	defer pub.Close()

	mr.Close()
	assert.Error(t, pub.Publish(ctx, nominalReport("r1")))

	_, err = NewRedisPublisher(ctx, addr, "", 0)
	assert.Error(t, err)
}
