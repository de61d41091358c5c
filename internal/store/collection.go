package store

import (
	"fmt"
	"regexp"
	"strings"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
)

var collectionPattern = regexp.MustCompile(`^[a-z0-9_]{1,63}$`)

// CollectionName derives the product collection of a shop: lower case, whitespace runs collapsed to "_".
// Names that would produce anything outside [a-z0-9_] or longer than 63 bytes are rejected.
func CollectionName(shopName string) (string, error) {
	name := strings.Join(strings.Fields(strings.ToLower(shopName)), "_")
	if !collectionPattern.MatchString(name) {
		return "", fmt.Errorf("shop name %q: %w", shopName, marketerrors.ErrInvalidShopName)
	}
	return name, nil
}
