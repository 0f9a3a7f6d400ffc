package pubkit

// Operation identifies a single API call kind.
type Operation string

const (
	PNTimeOperation                    Operation = "PNTimeOperation"
	PNPublishOperation                 Operation = "PNPublishOperation"
	PNSubscribeOperation               Operation = "PNSubscribeOperation"
	PNUnsubscribeOperation             Operation = "PNUnsubscribeOperation"
	PNHistoryOperation                 Operation = "PNHistoryOperation"
	PNAddChannelsToGroupOperation      Operation = "PNAddChannelsToGroupOperation"
	PNRemoveChannelsFromGroupOperation Operation = "PNRemoveChannelsFromGroupOperation"
	PNChannelsForGroupOperation        Operation = "PNChannelsForGroupOperation"
	PNChannelGroupsOperation           Operation = "PNChannelGroupsOperation"
	PNRemoveGroupOperation             Operation = "PNRemoveGroupOperation"
	PNAccessManagerGrant               Operation = "PNAccessManagerGrant"
	PNAccessManagerAudit               Operation = "PNAccessManagerAudit"
)

// signTags holds the verb used in the sign input for operations that
// require a signed request.
var signTags = map[Operation]string{
	PNAccessManagerGrant: "grant",
	PNAccessManagerAudit: "audit",
}

// Signed reports whether requests for this operation carry a signature.
func (o Operation) Signed() bool {
	_, ok := signTags[o]
	return ok
}

// LongPoll reports whether the operation is a long-lived call whose handle
// is returned to the caller for cancellation.
func (o Operation) LongPoll() bool {
	return o == PNSubscribeOperation
}

func (o Operation) String() string {
	return string(o)
}
