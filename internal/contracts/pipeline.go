package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그와 Cell.CompletedStages 에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S4 → S5 → S6 → S7
//   Data  Universe  Signals  Ranker  Portfolio  Returns  Audit

// Stage represents a pipeline stage
type Stage string

const (
	// StageDataQuality S0: 패널 품질 검증
	// 위치: internal/s0_data/quality/
	StageDataQuality Stage = "S0_DATA_QUALITY"

	// StageUniverse S1: 시가총액 유니버스 필터
	// 위치: internal/s1_universe/
	StageUniverse Stage = "S1_UNIVERSE"

	// StageSignals S2: 모멘텀 점수
	// 위치: internal/s2_signals/
	StageSignals Stage = "S2_SIGNALS"

	// StageRanker S4: winners / losers 선별
	// 위치: internal/selection/
	StageRanker Stage = "S4_RANKER"

	// StagePortfolio S5: 동일가중 비중 스케줄
	// 위치: internal/portfolio/
	StagePortfolio Stage = "S5_PORTFOLIO"

	// StageReturns S6: 보유기간 수익률 실현
	// 위치: internal/backtest/
	StageReturns Stage = "S6_RETURNS"

	// StageAudit S7: 성과 지표와 HAC 유의성
	// 위치: internal/audit/
	StageAudit Stage = "S7_AUDIT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageDataQuality:
		return "S0"
	case StageUniverse:
		return "S1"
	case StageSignals:
		return "S2"
	case StageRanker:
		return "S4"
	case StagePortfolio:
		return "S5"
	case StageReturns:
		return "S6"
	case StageAudit:
		return "S7"
	default:
		return "UNKNOWN"
	}
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageDataQuality:
		return "패널 품질 검증"
	case StageUniverse:
		return "유니버스 필터"
	case StageSignals:
		return "모멘텀 점수"
	case StageRanker:
		return "순위/선별"
	case StagePortfolio:
		return "포트폴리오 구성"
	case StageReturns:
		return "수익률 계산"
	case StageAudit:
		return "성과 분석/유의성"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageDataQuality,
		StageUniverse,
		StageSignals,
		StageRanker,
		StagePortfolio,
		StageReturns,
		StageAudit,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
