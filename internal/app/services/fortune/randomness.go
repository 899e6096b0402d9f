package fortune

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Randomness supplies a uniform value in [0,1) for outcome selection. The
// program treats it as an external collaborator.
type Randomness interface {
	Float64(ctx context.Context) (float64, error)
}

// CryptoSource draws from crypto/rand. The default source.
type CryptoSource struct{}

// Float64 returns a uniform value in [0,1) built from 53 random bits.
func (CryptoSource) Float64(_ context.Context) (float64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random bytes: %w", err)
	}
	bits := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(bits) / (1 << 53), nil
}

// FixedSource always returns the same roll. Test hook.
type FixedSource float64

func (f FixedSource) Float64(_ context.Context) (float64, error) { return float64(f), nil }

// BeaconSource pulls randomness from an HTTP beacon returning JSON. The
// value is read from the configured path as a uint64 and scaled to [0,1).
type BeaconSource struct {
	URL    string
	Path   string
	Client *http.Client
}

// NewBeaconSource builds a beacon source with a bounded request timeout.
func NewBeaconSource(url, path string) *BeaconSource {
	return &BeaconSource{
		URL:    url,
		Path:   path,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (b *BeaconSource) Float64(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build beacon request: %w", err)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query beacon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("beacon returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read beacon response: %w", err)
	}

	value := gjson.GetBytes(body, b.Path)
	if !value.Exists() {
		return 0, fmt.Errorf("beacon response missing %q", b.Path)
	}
	// Same 53-bit scaling as the crypto source.
	bits := value.Uint() >> 11
	return float64(bits) / (1 << 53), nil
}
