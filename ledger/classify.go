/*
classify.go - Transaction classifier

PURPOSE:
  Decides, from an entry's kind and linkage fields, whether it
  increases, decreases, or leaves neutral the balance of the bucket it
  belongs to. This is the single source of truth for balance direction:
  the replay calculator and any pre-commit preview both call it, so a
  balance can never be previewed with one rule and recalculated with
  another.

RULES (priority order):
  1. Explicit neutral flag          -> Neutral
  2. Yield redirected elsewhere     -> Neutral (the paired entry in the
                                       destination bucket is an Increase)
  3. Yield kept in the bucket       -> Increase
  4. Outflows (withdrawal, transfer
     out, loan granted)             -> Decrease
  5. Inflows (deposit, transfer in,
     loan received)                 -> Increase
  6. Anything else                  -> Neutral (fail safe: never silently
                                       corrupt a balance)
*/
package ledger

// Effect is the classifier's verdict for one entry.
type Effect int

const (
	Neutral Effect = iota
	Increase
	Decrease
)

func (e Effect) String() string {
	switch e {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "neutral"
	}
}

// Classify returns the balance effect of an entry on its owning bucket.
// Pure and deterministic: same entry, same verdict, always.
func Classify(e Entry) Effect {
	if e.IsNeutral {
		return Neutral
	}

	switch e.Kind {
	case KindYield:
		// Yield redirected to a different bucket leaves this bucket
		// instantly; the counterpart row carries the increase.
		if e.DestinationID != "" && e.DestinationID != e.BucketID {
			return Neutral
		}
		return Increase
	case KindWithdrawal, KindTransferOut, KindLoanGranted:
		return Decrease
	case KindDeposit, KindTransferIn, KindLoanReceived:
		return Increase
	}

	return Neutral
}
