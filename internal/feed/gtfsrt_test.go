package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetconsole.org/livemap/internal/telemetry"
	gtfsrtpb "github.com/jamespfennell/gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func vehiclePositionsFeed(t *testing.T) []byte {
	t.Helper()
	feed := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Unix())),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-1"), Label: proto.String("Bus 1")},
					Position: &gtfsrtpb.Position{
						Latitude:  proto.Float32(47.5),
						Longitude: proto.Float32(-122.25),
						Bearing:   proto.Float32(90),
						Speed:     proto.Float32(8),
					},
					Timestamp: proto.Uint64(uint64(time.Date(2024, 5, 1, 9, 59, 30, 0, time.UTC).Unix())),
				},
			},
			{
				Id: proto.String("e2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-2")},
					Position: &gtfsrtpb.Position{
						Latitude:  proto.Float32(47.75),
						Longitude: proto.Float32(-122.5),
					},
				},
			},
			{
				Id: proto.String("e3"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-3")},
				},
			},
		},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

func TestGTFSRealtimeSource(t *testing.T) {
	body := vehiclePositionsFeed(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	src := NewGTFSRealtimeSource(server.URL, map[string]string{"x-api-key": "secret"}, time.Second, nil)
	records := src.Fetch(context.Background())
	require.Len(t, records, 2)

	vehicles := telemetry.NewNormalizer(nil).NormalizeAll(records)
	require.Len(t, vehicles, 2)

	byID := map[string]telemetry.Vehicle{}
	for _, v := range vehicles {
		byID[v.ID] = v
	}
	bus1, ok := byID["bus-1"]
	require.True(t, ok)
	assert.Equal(t, "Bus 1", bus1.Name)
	assert.InDelta(t, 47.5, bus1.Lat, 1e-6)
	assert.InDelta(t, -122.25, bus1.Lng, 1e-6)
	require.NotNil(t, bus1.Heading)
	assert.InDelta(t, 90, *bus1.Heading, 1e-6)
	require.NotNil(t, bus1.Timestamp)
	assert.Equal(t, "2024-05-01T09:59:30Z", *bus1.Timestamp)

	bus2, ok := byID["bus-2"]
	require.True(t, ok)
	assert.Equal(t, "bus-2", bus2.Name)
	assert.Nil(t, bus2.Heading)
}

func TestGTFSRealtimeSourceDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not protobuf \xff\xff\xff"))
	}))
	defer server.Close()

	records := NewGTFSRealtimeSource(server.URL, nil, time.Second, nil).Fetch(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
