// Package idgen issues the 64-bit snowflake IDs used as primary keys.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/erp/ordersync/internal/domain/shared"
)

// Snowflake generates time-ordered IDs from a single snowflake node
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for the given node number (0-1023).
// Instances sharing a database must use distinct node numbers.
func NewSnowflake(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", node, err)
	}
	return &Snowflake{node: n}, nil
}

// NextID returns a new ID, greater than every ID previously returned by this generator
func (s *Snowflake) NextID() int64 {
	return s.node.Generate().Int64()
}

var _ shared.IDGenerator = (*Snowflake)(nil)
