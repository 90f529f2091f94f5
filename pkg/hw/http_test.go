package hw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBoard_SetMotorPostsFrame(t *testing.T) {
	var got motorRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/motor" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	b := NewBoard(srv.URL)
	if err := b.SetMotor(100, -100, 200, -200); err != nil {
		t.Fatalf("SetMotor: %v", err)
	}
	want := motorRequest{FL: 100, BL: -100, FR: 200, BR: -200}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestBoard_SensorReads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sensorResponse{DistanceCM: 42.5, BatteryV: 7.1})
	}))
	defer srv.Close()

	b := NewBoard(srv.URL)
	cm, err := b.ReadUltrasonic()
	if err != nil || cm != 42.5 {
		t.Errorf("ReadUltrasonic = %v, %v", cm, err)
	}
	v, err := b.ReadBattery()
	if err != nil || v != 7.1 {
		t.Errorf("ReadBattery = %v, %v", v, err)
	}
}

func TestBoard_ErrorStatusSurfacesAsFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBoard(srv.URL)
	if err := b.SetMotor(0, 0, 0, 0); err == nil {
		t.Fatal("expected error from 500 response")
	}
	if _, err := b.ReadBattery(); err == nil {
		t.Fatal("expected error from 500 response")
	}
}
