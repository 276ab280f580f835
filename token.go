package adaptive

// Token identifies a subscription returned by any Subscribe-style method in
// this module. Pass it back to the matching Unsubscribe. The zero Token is
// never issued.
type Token uint64
