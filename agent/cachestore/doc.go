// Component for caching scan verdicts with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
// Values are opaque bytes; GetJSON and SetJSON cover the common case.
//
// The agent keys entries by a hash of the scanned text, so identical content
// cross-posted to several communities is scanned once.
package cachestore
