//go:build integration

package pypi

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/reqlint/pkg/marker"
)

func TestFetchPackage_Integration(t *testing.T) {
	client := NewClient(nil, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tests := []struct {
		pkg     string
		wantErr bool
	}{
		{"pyfiglet", false},
		{"importlib-metadata", false},
		{"this-package-should-not-exist-12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			info, err := client.FetchPackage(ctx, tt.pkg, true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchPackage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(info.Releases) == 0 {
				t.Error("expected at least one release")
			}
			_ = info.Dependencies(marker.DefaultEnvironment())
		})
	}
}
