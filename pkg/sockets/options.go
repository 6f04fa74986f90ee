package sockets

import "time"

// WithPingInterval sends a ping control frame every d. The peer is dropped
// if no pong arrives within two intervals.
func WithPingInterval(d time.Duration) func(*Conn) {
	return func(c *Conn) {
		c.pingInterval = d
	}
}

func WithWriteTimeout(d time.Duration) func(*Conn) {
	return func(c *Conn) {
		c.writeTimeout = d
	}
}

func WithMaxMessageSize(size int64) func(*Conn) {
	return func(c *Conn) {
		c.maxMessageSize = size
	}
}

// OnMessage is called for every text or binary message, in order, from the
// read loop.
func OnMessage(f func([]byte, *Conn)) func(*Conn) {
	return func(c *Conn) {
		c.onMessage = f
	}
}

// OnError is called when the connection fails for any reason other than a
// normal close by either side.
func OnError(f func(error)) func(*Conn) {
	return func(c *Conn) {
		c.onError = f
	}
}
