package scheduler

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// NormalizeAddressPool trims entries, drops blanks and duplicates and caps the pool size.
// Multi-line entries are split one per line.
func NormalizeAddressPool(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		for _, line := range strings.Split(strings.ReplaceAll(e, "\r\n", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
			if len(out) == utils.MaxAddressPoolSize {
				return out
			}
		}
	}
	return out
}

// AddressStrategy assigns one pool entry to a recipient of a run
type AddressStrategy interface {
	Name() models.AddressStrategy
	// PerRun reports whether every recipient of a run gets the same entry
	PerRun() bool
	Pick(pool []string, ordinal uint, periodKey string, cursor int) string
}

// HashedStrategy is deterministic in (ordinal, period key)
type HashedStrategy struct{}

func (HashedStrategy) Name() models.AddressStrategy { return models.AddressStrategyHashed }
func (HashedStrategy) PerRun() bool                 { return false }

func (HashedStrategy) Pick(pool []string, ordinal uint, periodKey string, _ int) string {
	if len(pool) == 0 {
		return ""
	}
	h := xxhash.Sum64String(strconv.FormatUint(uint64(ordinal), 10) + "|" + periodKey)
	return pool[h%uint64(len(pool))]
}

// RandomStrategy picks uniformly per recipient
type RandomStrategy struct {
	IntN func(n int) int
}

func (RandomStrategy) Name() models.AddressStrategy { return models.AddressStrategyRandom }
func (RandomStrategy) PerRun() bool                 { return false }

func (s RandomStrategy) Pick(pool []string, _ uint, _ string, _ int) string {
	if len(pool) == 0 {
		return ""
	}
	intN := s.IntN
	if intN == nil {
		intN = rand.IntN
	}
	return pool[intN(len(pool))]
}

// RotatingStrategy uses the campaign cursor; the whole run shares one entry
type RotatingStrategy struct{}

func (RotatingStrategy) Name() models.AddressStrategy { return models.AddressStrategyRotating }
func (RotatingStrategy) PerRun() bool                 { return true }

func (RotatingStrategy) Pick(pool []string, _ uint, _ string, cursor int) string {
	if len(pool) == 0 {
		return ""
	}
	if cursor < 0 {
		cursor = -cursor
	}
	return pool[cursor%len(pool)]
}

// StrategyFor returns the configured strategy, defaulting to hashed for email
// and rotating for sms
func StrategyFor(c *models.AutoCampaign, intN func(int) int) AddressStrategy {
	switch c.AddressStrategy {
	case models.AddressStrategyHashed:
		return HashedStrategy{}
	case models.AddressStrategyRandom:
		return RandomStrategy{IntN: intN}
	case models.AddressStrategyRotating:
		return RotatingStrategy{}
	}
	if c.Channel == models.ChannelSMS {
		return RotatingStrategy{}
	}
	return HashedStrategy{}
}
