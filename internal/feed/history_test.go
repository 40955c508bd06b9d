package feed

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteHistoryClient(t *testing.T) {
	var seen requestLog
	server := serveJSON(t, http.StatusOK, `[
		{"lat":1,"lng":2,"timestamp":"t1"},
		{"latitude":"1.5","longitude":"2.5","speed":12},
		{"lat":0,"lng":0},
		{"lat":"bad"}
	]`, &seen)

	points := NewRouteHistoryClient(server.URL, time.Second, nil).Route(context.Background(), "AB 1")

	assert.Equal(t, "/vehicles/AB 1/route", seen.last().Path)
	require.Len(t, points, 2)
	assert.Equal(t, 1.0, points[0].Lat)
	require.NotNil(t, points[0].Timestamp)
	assert.Equal(t, "t1", *points[0].Timestamp)
	assert.Equal(t, 2.5, points[1].Lng)
	require.NotNil(t, points[1].Speed)
}

func TestRouteHistoryClientDegrades(t *testing.T) {
	server := serveJSON(t, http.StatusNotFound, `{}`, nil)

	points := NewRouteHistoryClient(server.URL, time.Second, nil).Route(context.Background(), "AB1")
	assert.NotNil(t, points)
	assert.Empty(t, points)
}
