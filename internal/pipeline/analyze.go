package pipeline

import (
	"fmt"

	"telematch/internal/extract"
	"telematch/internal/match"
	"telematch/pkg/contract"
)

// Analyze 是纯内存的核心入口：抽取 → 交叉 → 命名结果。
// 不做 I/O，不读全局状态；同样的输入总是得到同样的 Result。
//
// 结果约定：
//   - 表格数 < 2：OutcomeInsufficientTables，返回 ErrInsufficientTables；
//   - 未抽取到任何记录：OutcomeNoRecords，返回 ErrNoRecords；
//   - 交叉为空：OutcomeNoMatches，err 为 nil；
//   - 其余：OutcomeMatched。
//
// 任何情况下 FileErrors 都原样带回。
func Analyze(blocks []contract.Block, fileErrs []contract.FileError, set Settings) (contract.Result, error) {
	res := contract.Result{
		FileErrors:    fileErrs,
		Complementary: set.Complementary,
	}
	if len(set.Kind.Fields()) == 0 {
		return res, fmt.Errorf("%w: unknown analysis kind %q", contract.ErrInvalidInput, set.Kind)
	}
	if set.Policy.Enabled == 0 {
		return res, fmt.Errorf("%w: no confidence tier enabled", contract.ErrInvalidInput)
	}
	for _, b := range blocks {
		res.Tables += len(b.Tables)
	}
	if res.Tables < 2 {
		res.Outcome = contract.OutcomeInsufficientTables
		return res, fmt.Errorf("%w: %d table(s) parsed, need at least 2", contract.ErrInsufficientTables, res.Tables)
	}

	records := extract.Run(blocks, extract.Settings{
		Kind:          set.Kind,
		Complementary: set.Complementary,
		Strict:        set.Policy.Strict,
	})
	if len(records) == 0 {
		res.Outcome = contract.OutcomeNoRecords
		return res, fmt.Errorf("%w: %d table(s) scanned", contract.ErrNoRecords, res.Tables)
	}
	res.Records = records

	matches := match.Cross(records, set.Policy, set.Complementary)
	if err := match.Verify(matches); err != nil {
		return res, err
	}
	res.Matches = matches
	if len(matches) == 0 {
		res.Outcome = contract.OutcomeNoMatches
	} else {
		res.Outcome = contract.OutcomeMatched
	}
	return res, nil
}
