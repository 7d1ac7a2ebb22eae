// Package memory maintains ordered conversation history for an assistant
// session. It exposes windowed views used to build chat messages for
// providers with native message support, and a rendered plain-text view for
// providers that only accept a single prompt string.
package memory
