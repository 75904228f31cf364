package timing

import (
	"sync"
	"testing"
)

func TestOneShotFirstCallerWins(t *testing.T) {
	var cell OneShot
	if cell.Done() {
		t.Fatalf("expected fresh cell to be incomplete")
	}
	if !cell.TryComplete() {
		t.Fatalf("expected first TryComplete to win")
	}
	if cell.TryComplete() {
		t.Fatalf("expected second TryComplete to lose")
	}
	if !cell.Done() {
		t.Fatalf("expected cell to be done")
	}
}

func TestOneShotExactlyOneWinnerUnderContention(t *testing.T) {
	var cell OneShot
	const racers = 32

	wins := make(chan struct{}, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cell.TryComplete() {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
