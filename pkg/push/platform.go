// --- File: pkg/push/platform.go ---
package push

import "fmt"

// Platform identifies which provider backend understands a device token.
type Platform string

const (
	PlatformFCM     Platform = "fcm"
	PlatformAPNS    Platform = "apns"
	PlatformWebPush Platform = "webpush"
)

// ParsePlatform validates a wire-format platform string.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformFCM, PlatformAPNS, PlatformWebPush:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}
