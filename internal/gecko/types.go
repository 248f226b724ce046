package gecko

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// number decodes GeckoTerminal numerics, which arrive as JSON numbers,
// quoted decimal strings, percent strings or null.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable values count as zero, never as a decode failure.
		*n = 0
		return nil
	}
	*n = number(f)
	return nil
}

type poolsResponse struct {
	Data []poolResource `json:"data"`
}

type poolResource struct {
	ID         string         `json:"id"`
	Attributes poolAttributes `json:"attributes"`
}

type poolAttributes struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	PoolCreatedAt string `json:"pool_created_at"`
	FDVUSD        number `json:"fdv_usd"`
	ReserveInUSD  number `json:"reserve_in_usd"`
	Transactions  struct {
		H24 struct {
			Buys  int64 `json:"buys"`
			Sells int64 `json:"sells"`
		} `json:"h24"`
	} `json:"transactions"`
	VolumeUSD struct {
		H24 number `json:"h24"`
	} `json:"volume_usd"`
}

func (a poolAttributes) transactions24h() int64 {
	return a.Transactions.H24.Buys + a.Transactions.H24.Sells
}

func (a poolAttributes) createdAt() time.Time {
	if a.PoolCreatedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, a.PoolCreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type infoResponse struct {
	Data []tokenResource `json:"data"`
}

type tokenResource struct {
	ID         string          `json:"id"`
	Attributes tokenAttributes `json:"attributes"`
}

type tokenAttributes struct {
	Address         string `json:"address"`
	Symbol          string `json:"symbol"`
	MintAuthority   string `json:"mint_authority"`
	FreezeAuthority string `json:"freeze_authority"`
	GTScore         number `json:"gt_score"`
	Holders         *struct {
		DistributionPercentage *struct {
			Top10 number `json:"top_10"`
		} `json:"distribution_percentage"`
	} `json:"holders"`
}

func (a tokenAttributes) top10() float64 {
	if a.Holders == nil || a.Holders.DistributionPercentage == nil {
		return 0
	}
	return float64(a.Holders.DistributionPercentage.Top10)
}
