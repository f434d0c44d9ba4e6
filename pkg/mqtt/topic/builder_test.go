package topic

import "testing"

func TestBuilder(t *testing.T) {
	b := NewBuilder("tesla/v1/")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", b.VehicleState("5YJ3E1EA7KF000001"), "tesla/v1/vehicles/5YJ3E1EA7KF000001/state"},
		{"snapshot", b.VehicleSnapshot("5YJ3E1EA7KF000001"), "tesla/v1/vehicles/5YJ3E1EA7KF000001/snapshot"},
		{"exporter", b.ExporterStatus("host-1"), "tesla/v1/exporter/host-1/status"},
		{"escaped", b.VehicleState("a/b+#"), "tesla/v1/vehicles/a_b__/state"},
		{"empty id", b.VehicleState(""), "tesla/v1/vehicles/_/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
