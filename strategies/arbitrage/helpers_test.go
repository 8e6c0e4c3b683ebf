package arbitrage

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils/testutils"
)

const (
	sourcePoolAddr = testutils.SourcePoolAddress
	targetPoolAddr = testutils.TargetPoolAddress
)

func testOpportunity() types.ArbitrageOpportunity {
	return testutils.Opportunity(nil)
}

func testValidator(t *testing.T) *Validator {
	return NewValidator(config.DefaultConfig().Validation, zaptest.NewLogger(t))
}
