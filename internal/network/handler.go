package network

// EventHandler connects the network layer to the game logic.
type EventHandler interface {
	// OnConnect is called once a client is registered.
	OnConnect(c *Client)

	// OnDisconnect is called once when the client's read loop ends, before
	// the hub forgets it.
	OnDisconnect(c *Client)

	// OnMessage handles one inbound envelope. Returning an error drops the
	// connection.
	OnMessage(c *Client, msg Message) error
}
