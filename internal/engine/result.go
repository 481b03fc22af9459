package engine

// Action is the outcome of one strategy's evaluation-and-maybe-execute cycle.
type Action string

const (
	ActionNoOpportunity Action = "NO_OPPORTUNITY"
	ActionTradeExecuted Action = "TRADE_EXECUTED"
	ActionError         Action = "ERROR"
)

// PerStrategyResult reports what happened to one strategy during a poll.
// One strategy's failure never aborts the batch; it becomes an ERROR entry.
type PerStrategyResult struct {
	StrategyID   uint   `json:"strategy_id"`
	StrategyName string `json:"strategy_name"`
	Action       Action `json:"action"`
	Detail       string `json:"detail,omitempty"`
	TradeID      uint   `json:"trade_id,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// TradeInstruction is the concrete order a MATCH produces.
type TradeInstruction struct {
	InputToken     string
	OutputToken    string
	InputDecimals  int
	OutputDecimals int
	Amount         float64 // human units of the input token
	SlippageBps    int
	Direction      string
	TokenName      string
	TakeProfit     *float64
	StopLoss       *float64
}

// TradeEvent is published to the message queue when a trade reaches a
// terminal status.
type TradeEvent struct {
	TradeID     uint    `json:"trade_id"`
	UserID      string  `json:"user_id"`
	StrategyID  uint    `json:"strategy_id"`
	Status      string  `json:"status"`
	Signature   string  `json:"signature,omitempty"`
	InputToken  string  `json:"input_token"`
	OutputToken string  `json:"output_token"`
	Amount      float64 `json:"amount"`
	Detail      string  `json:"detail,omitempty"`
}
