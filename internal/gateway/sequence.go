package gateway

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Sequence выдаёт уникальные числа для идентификаторов транзакций.
// Каждая попытка инициации получает новое значение, повторно ничего не используется.
type Sequence interface {
	Next() int64
}

type snowflakeSequence struct {
	node *snowflake.Node
}

// NewSequence - nodeID должен быть уникален для каждого экземпляра сервиса (0..1023).
func NewSequence(nodeID int64) (Sequence, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &snowflakeSequence{node: node}, nil
}

func (s *snowflakeSequence) Next() int64 {
	return s.node.Generate().Int64()
}
