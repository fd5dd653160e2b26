package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s", prefix, id[:16])
}

// GenerateSubscriberID generates an id for one subscriber connection
func GenerateSubscriberID(transport string) string {
	return GenerateID(transport)
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return GenerateID("req")
}

// GenerateInstanceID generates an id for one relay process
func GenerateInstanceID() string {
	return uuid.NewString()
}
