package pipeline

import (
	"fmt"
	"testing"

	"telematch/internal/confidence"
	"telematch/pkg/contract"
)

// synthBlocks 构造 nBlocks 个 Block，每个一张表、rows 行；约一半号码在相邻 Block 间重复。
func synthBlocks(nBlocks, rows int) []contract.Block {
	blocks := make([]contract.Block, nBlocks)
	for b := 0; b < nBlocks; b++ {
		id := contract.BlockID(fmt.Sprintf("B%02d", b))
		t := contract.Table{
			File:    contract.FileID(fmt.Sprintf("b%02d.csv", b)),
			Block:   id,
			Columns: []string{"telefone", "imei", "nome"},
			Rows:    make([]contract.Row, rows),
		}
		for i := 0; i < rows; i++ {
			n := i
			if i%2 == 1 {
				n = b*rows + i
			}
			t.Rows[i] = contract.Row{
				"telefone": fmt.Sprintf("(81) 9%04d-%04d", n/10000%10000, n%10000),
				"imei":     fmt.Sprintf("35693803%07d", n),
				"nome":     fmt.Sprintf("pessoa %d", n),
			}
		}
		blocks[b] = contract.Block{ID: id, Tables: []contract.Table{t}}
	}
	return blocks
}

func BenchmarkAnalyze(b *testing.B) {
	for _, rows := range []int{1000, 10000} {
		blocks := synthBlocks(4, rows)
		set := Settings{Kind: contract.CellTowerExtract, Complementary: []string{"name"}, Policy: confidence.Default()}
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res, err := Analyze(blocks, nil, set)
				if err != nil {
					b.Fatalf("analyze: %v", err)
				}
				if res.Outcome != contract.OutcomeMatched {
					b.Fatalf("outcome: %s", res.Outcome)
				}
			}
		})
	}
}
