package queue_test

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/queue"
)

func transfer(n int64) common.UnsignedTransaction {
	return common.NewUnsignedTransaction(ethcommon.BigToAddress(big.NewInt(n)), nil, big.NewInt(n), 0)
}

func descriptions(items []common.PreparedTx) []string {
	result := []string{}
	for _, it := range items {
		result = append(result, it.Description)
	}
	return result
}

func TestDrainIsFIFOAndEmpties(t *testing.T) {
	q := queue.New()
	q.Push("a", transfer(1))
	q.Push("b", transfer(2))
	q.Push("c", transfer(3))

	items := q.DrainAll()
	require.Equal(t, []string{"a", "b", "c"}, descriptions(items))
	require.Equal(t, big.NewInt(2), items[1].Tx.Value())
	require.Zero(t, q.Len())
	require.Empty(t, q.DrainAll())
}

func TestPeekDoesNotMutate(t *testing.T) {
	q := queue.New()
	q.Push("a", transfer(1))
	q.Push("b", transfer(2))

	peeked := q.PeekAll()
	peeked[0].Description = "changed"
	require.Equal(t, 2, q.Len())
	require.Equal(t, []string{"a", "b"}, descriptions(q.PeekAll()))
}

func TestRequeueGoesToTheFront(t *testing.T) {
	q := queue.New()
	q.Push("a", transfer(1))
	q.Push("b", transfer(2))
	drained := q.DrainAll()
	q.Push("c", transfer(3))

	q.Requeue(drained)
	require.Equal(t, []string{"a", "b", "c"}, descriptions(q.DrainAll()))
}

func TestConcurrentPushes(t *testing.T) {
	q := queue.New()
	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Push(fmt.Sprintf("tx %d", i), transfer(int64(i)))
		}(i)
	}
	wg.Wait()
	require.Len(t, q.DrainAll(), 50)
}
