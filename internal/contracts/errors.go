package contracts

import (
	"fmt"
	"time"
)

// DataGapError: a required historical price is missing.
// 로컬 복구: 해당 기간 랭킹 풀에서 제외 (기본값 대체 금지)
type DataGapError struct {
	Instrument string
	Date       time.Time // date the value was required for
	Missing    time.Time // date of the missing observation (zero if before panel start)
}

func (e *DataGapError) Error() string {
	if e.Missing.IsZero() {
		return fmt.Sprintf("data gap: %s at %s needs history before panel start", e.Instrument, e.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("data gap: %s at %s missing price on %s",
		e.Instrument, e.Date.Format("2006-01-02"), e.Missing.Format("2006-01-02"))
}

// InvalidPriceError: a non-positive or non-finite price where a ratio is required.
// 데이터 갭과 구분해서 로깅/리포트
type InvalidPriceError struct {
	Instrument string
	Date       time.Time
	Price      float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price: %s on %s = %v", e.Instrument, e.Date.Format("2006-01-02"), e.Price)
}

// InsufficientUniverseError: fewer scored instruments than the portfolio size.
// 실패가 아니라 degraded 선택 + 플래그
type InsufficientUniverseError struct {
	Date      time.Time
	Available int
	Required  int
}

func (e *InsufficientUniverseError) Error() string {
	return fmt.Sprintf("insufficient universe on %s: %d scored, %d required",
		e.Date.Format("2006-01-02"), e.Available, e.Required)
}

// RangeMismatchError: two return series do not cover the same dates.
// 치명적: 조용히 잘라내지 않음
type RangeMismatchError struct {
	Left, Right          string
	LeftStart, LeftEnd   time.Time
	RightStart, RightEnd time.Time
	LeftLen, RightLen    int
}

func (e *RangeMismatchError) Error() string {
	return fmt.Sprintf("range mismatch: %s [%s..%s, n=%d] vs %s [%s..%s, n=%d]",
		e.Left, fmtDate(e.LeftStart), fmtDate(e.LeftEnd), e.LeftLen,
		e.Right, fmtDate(e.RightStart), fmtDate(e.RightEnd), e.RightLen)
}

// DegenerateStatisticError: a ratio or test statistic is undefined
// (zero volatility, no downside periods, too few observations).
type DegenerateStatisticError struct {
	Statistic string
	Reason    string
}

func (e *DegenerateStatisticError) Error() string {
	return fmt.Sprintf("%s undefined: %s", e.Statistic, e.Reason)
}

func fmtDate(d time.Time) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("2006-01-02")
}
