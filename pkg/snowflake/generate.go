package snowflake

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	mu   sync.RWMutex

	errInvalidMachineID   = errors.New("invalid snowflake machine id")
	errInvalidDataCenter  = errors.New("invalid snowflake datacenter id")
	errGeneratorUninitial = errors.New("snowflake generator is not initialized")
)

// Init datacenterID 和 machineID 都是 0~31，重复调用以最后一次为准
func Init(machineID, dataCenterID int64) error {
	if machineID < 0 || machineID > 31 {
		return errInvalidMachineID
	}
	if dataCenterID < 0 || dataCenterID > 31 {
		return errInvalidDataCenter
	}

	n, err := snowflake.NewNode((dataCenterID << 5) | machineID)
	if err != nil {
		return err
	}

	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

func NextID() (int64, error) {
	mu.RLock()
	n := node
	mu.RUnlock()

	if n == nil {
		return 0, errGeneratorUninitial
	}
	return n.Generate().Int64(), nil
}
