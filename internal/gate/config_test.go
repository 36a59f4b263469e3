package gate_test

import (
	"testing"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/gate"
	"gatewarden/internal/testsupport"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithThreshold(3),
		testsupport.WithAutoCloseSeconds(7),
		testsupport.WithPendingTimeout(30, "reject"),
		testsupport.WithCredential("badge-7", "123TUN45"),
	)

	opts, err := gate.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.StabilityThreshold != 3 || opts.AutoCloseDelay != 7*time.Second {
		t.Fatalf("unexpected gate timing: %+v", opts)
	}
	if opts.TimeoutPolicy != gate.PolicyReject || opts.PendingTimeout != 30*time.Second {
		t.Fatalf("unexpected pending policy: %+v", opts)
	}
	if len(opts.Cameras) != 2 || opts.Cameras[0].Direction != access.DirectionEnter || opts.Cameras[1].Direction != access.DirectionExit {
		t.Fatalf("unexpected cameras: %+v", opts.Cameras)
	}
	if plates := opts.Credentials["badge-7"]; len(plates) != 1 || plates[0] != "123TUN45" {
		t.Fatalf("unexpected credentials: %+v", opts.Credentials)
	}
}

func TestOptionsFromConfigRejectsNil(t *testing.T) {
	if _, err := gate.OptionsFromConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
