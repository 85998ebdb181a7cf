// Package delivery prepares page bytes for the wire. The XOR transform is obfuscation
// that keeps casual "save image" tooling from working, not encryption.
package delivery

import "github.com/gofiber/fiber/v2"

// Key is the single-byte XOR key shared with the page viewer.
const Key byte = 0xA7

// Encode returns a new slice with every byte XORed with Key.
func Encode(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ Key
	}
	return out
}

// Decode reverses Encode.
func Decode(b []byte) []byte { return Encode(b) }

// ProtectHeaders marks the response as an opaque, uncacheable inline payload.
func ProtectHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate, private")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set(fiber.HeaderContentDisposition, "inline")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
}
