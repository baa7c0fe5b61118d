package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Processor metadata limits: values up to 500 characters and 50 keys per object. The
// item chunks may use 40 keys; the rest is left for referral and cart keys.
const (
	MetadataValueLimit = 500
	MaxItemChunks      = 40
	itemsKeyPrefix     = "items_"

	MetaReferralCode   = "referral_code"
	MetaDiscountAmount = "discount_amount"
	MetaCartID         = "cart_id"
	MetaUserID         = "user_id"
	MetaPlanID         = "plan_id"
)

var (
	ErrMetadataTooLarge = errors.New("cart is too large to describe in payment session metadata")
	ErrInvalidMetadata  = errors.New("invalid line item metadata")
)

// MetadataItem is the reduced line item carried through the payment session. Images
// and descriptions are dropped to fit the processor's metadata limits. P is the unit
// price in minor units of the session currency.
type MetadataItem struct {
	ID       string `json:"i"`
	Name     string `json:"n"`
	Price    int64  `json:"p"`
	Quantity int    `json:"q"`
	Color    string `json:"c,omitempty"`
}

// EncodeItems serializes items to compact JSON and splits it into items_0..items_k
// values of at most MetadataValueLimit characters.
func EncodeItems(items []MetadataItem) (map[string]string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata items: %w", err)
	}

	// Split on rune boundaries so no chunk carries half a character.
	chunks := []string{}
	var b strings.Builder
	for _, r := range string(raw) {
		if b.Len()+len(string(r)) > MetadataValueLimit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}

	if len(chunks) > MaxItemChunks {
		return nil, fmt.Errorf("%w: %d chunks of %d allowed", ErrMetadataTooLarge, len(chunks), MaxItemChunks)
	}

	out := make(map[string]string, len(chunks))
	for i, c := range chunks {
		out[itemsKeyPrefix+strconv.Itoa(i)] = c
	}
	return out, nil
}

// DecodeItems reassembles items_* values in index order. Metadata without item keys
// decodes to no items.
func DecodeItems(metadata map[string]string) ([]MetadataItem, error) {
	type chunk struct {
		idx   int
		value string
	}
	var chunks []chunk
	for k, v := range metadata {
		if !strings.HasPrefix(k, itemsKeyPrefix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(k, itemsKeyPrefix))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: key %q", ErrInvalidMetadata, k)
		}
		chunks = append(chunks, chunk{idx, v})
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].idx < chunks[j].idx })
	var b strings.Builder
	for i, c := range chunks {
		if c.idx != i {
			return nil, fmt.Errorf("%w: missing chunk %d", ErrInvalidMetadata, i)
		}
		b.WriteString(c.value)
	}

	var items []MetadataItem
	if err := json.Unmarshal([]byte(b.String()), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return items, nil
}
