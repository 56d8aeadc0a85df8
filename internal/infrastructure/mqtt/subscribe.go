package mqtt

import (
	"fmt"
)

// Subscribe registers handler for a pattern, which may use + and #.
//
// The pattern is tracked only once the broker grants it, and from then on it
// is replayed after every reconnect. Subscribing the same pattern again
// replaces its handler.
func (c *Client) Subscribe(pattern string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(pattern, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrSubscribeFailed, pattern)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.paho.Subscribe(pattern, qos, c.wrapHandler(handler)), defaultAckTimeout, ErrSubscribeFailed); err != nil {
		return err
	}

	c.subMu.Lock()
	c.subs[pattern] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()
	return nil
}

// SubscribeAll subscribes one handler to several patterns. It stops at the
// first failure and returns it with the offending pattern.
func (c *Client) SubscribeAll(patterns []string, qos byte, handler MessageHandler) error {
	for _, p := range patterns {
		if err := c.Subscribe(p, qos, handler); err != nil {
			return fmt.Errorf("subscribing %q: %w", p, err)
		}
	}
	return nil
}

// Unsubscribe stops tracking a pattern and removes it at the broker.
// Messages already in flight may still reach the old handler.
func (c *Client) Unsubscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subs, pattern)
	c.subMu.Unlock()

	return await(c.paho.Unsubscribe(pattern), defaultAckTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of tracked patterns.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// HasSubscription reports whether the exact pattern string is tracked.
func (c *Client) HasSubscription(pattern string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subs[pattern]
	return ok
}
