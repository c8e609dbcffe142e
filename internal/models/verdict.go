package models

import "fmt"

// Reason explains why a ticker-day did not become a GapEvent.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInsufficientData     Reason = "insufficient_data"
	ReasonMalformedPrice       Reason = "malformed_price"
	ReasonBelowPreMarketVolume Reason = "below_premarket_volume"
	ReasonBelowGapThreshold    Reason = "below_gap_threshold"
	ReasonBelowMinPrice        Reason = "below_min_price"
	ReasonBelowMinVolume       Reason = "below_min_volume"
	ReasonCorporateAction      Reason = "corporate_action"
	ReasonProbableSplit        Reason = "probable_split"
	ReasonIlliquidPrint        Reason = "illiquid_print"
	ReasonExcludedSymbol       Reason = "excluded_symbol"
)

// Verdict is the outcome of one qualification step: either qualified, or
// disqualified with an inspectable reason.
type Verdict struct {
	Qualified bool   `json:"qualified"`
	Reason    Reason `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Qualified returns an accepting verdict.
func Qualified() Verdict {
	return Verdict{Qualified: true}
}

// Disqualified returns a rejecting verdict with a formatted detail message.
func Disqualified(reason Reason, format string, args ...interface{}) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (v Verdict) String() string {
	if v.Qualified {
		return "qualified"
	}
	if v.Detail == "" {
		return string(v.Reason)
	}
	return fmt.Sprintf("%s: %s", v.Reason, v.Detail)
}
