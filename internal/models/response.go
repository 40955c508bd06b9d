package models

import (
	"net/http"
	"time"
)

// ResponseModel is the envelope every REST response is wrapped in.
type ResponseModel struct {
	Code        int         `json:"code"`
	CurrentTime int64       `json:"currentTime"`
	Data        interface{} `json:"data"`
	Text        string      `json:"text"`
	Version     int         `json:"version"`
}

const ResponseVersion = 2

func ResponseCurrentTime() int64 {
	return time.Now().UnixMilli()
}

func NewResponse(code int, data interface{}, text string) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(),
		Data:        data,
		Text:        text,
		Version:     ResponseVersion,
	}
}

func NewOKResponse(data interface{}) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK")
}

// NewEntryResponse wraps a single object as {"entry": ...}.
func NewEntryResponse(entry interface{}) ResponseModel {
	return NewOKResponse(map[string]interface{}{
		"entry": entry,
	})
}

// NewListResponse wraps a collection as {"list": ..., "count": n}. A nil
// list is written as an empty array.
func NewListResponse[T any](list []T) ResponseModel {
	if list == nil {
		list = []T{}
	}
	return NewOKResponse(map[string]interface{}{
		"list":  list,
		"count": len(list),
	})
}
