package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const tokenPrefix = "seq"

// EncodeSequenceToken creates an opaque token pointing just after the given ledger sequence.
func EncodeSequenceToken(sequence int64) string {
	tokenStr := fmt.Sprintf("%s|%d", tokenPrefix, sequence)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeSequenceToken parses a token produced by EncodeSequenceToken.
func DecodeSequenceToken(token string) (int64, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 || parts[0] != tokenPrefix {
		return 0, fmt.Errorf("invalid pagination token format (split)")
	}
	sequence, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || sequence <= 0 {
		return 0, fmt.Errorf("invalid pagination token format (sequence parse)")
	}
	return sequence, nil
}
