package endpoints

import (
	"net/url"
	"strings"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
)

const channelRegistrationPath = "/v1/channel-registration/sub-key/"

func groupURL(cfg *config.Config, group string) string {
	return channelRegistrationPath + cfg.SubscribeKey + "/channel-group/" + group
}

// ChannelsParams names a channel group and the channels to change in it.
type ChannelsParams struct {
	ChannelGroup string   `label:"Channel Group" validate:"required"`
	Channels     []string `label:"Channels" validate:"min=1"`
}

// GroupParams names a channel group.
type GroupParams struct {
	ChannelGroup string `label:"Channel Group" validate:"required"`
}

// RemoveChannelsFromGroup removes channels from a channel group.
type RemoveChannelsFromGroup struct{ transaction }

var _ pubkit.Endpoint[ChannelsParams, pubkit.Empty] = RemoveChannelsFromGroup{}

func (RemoveChannelsFromGroup) Operation() pubkit.Operation {
	return pubkit.PNRemoveChannelsFromGroupOperation
}

func (RemoveChannelsFromGroup) Validate(cfg *config.Config, p ChannelsParams) string {
	return validate(cfg, p, keys{subscribe: true})
}

func (RemoveChannelsFromGroup) URL(cfg *config.Config, p ChannelsParams) string {
	return groupURL(cfg, p.ChannelGroup)
}

func (RemoveChannelsFromGroup) PrepareParams(_ *config.Config, p ChannelsParams) url.Values {
	channels := p.Channels
	if channels == nil {
		channels = []string{}
	}
	return url.Values{"remove": {strings.Join(channels, ",")}}
}

func (RemoveChannelsFromGroup) HandleResponse(*config.Config, []byte, ChannelsParams) (pubkit.Empty, error) {
	return pubkit.Empty{}, nil
}

// AddChannelsToGroup adds channels to a channel group, creating the group
// if needed.
type AddChannelsToGroup struct{ transaction }

var _ pubkit.Endpoint[ChannelsParams, pubkit.Empty] = AddChannelsToGroup{}

func (AddChannelsToGroup) Operation() pubkit.Operation {
	return pubkit.PNAddChannelsToGroupOperation
}

func (AddChannelsToGroup) Validate(cfg *config.Config, p ChannelsParams) string {
	return validate(cfg, p, keys{subscribe: true})
}

func (AddChannelsToGroup) URL(cfg *config.Config, p ChannelsParams) string {
	return groupURL(cfg, p.ChannelGroup)
}

func (AddChannelsToGroup) PrepareParams(_ *config.Config, p ChannelsParams) url.Values {
	return url.Values{"add": {strings.Join(p.Channels, ",")}}
}

func (AddChannelsToGroup) HandleResponse(*config.Config, []byte, ChannelsParams) (pubkit.Empty, error) {
	return pubkit.Empty{}, nil
}

// ChannelsResponse lists the channels of a group.
type ChannelsResponse struct {
	Channels []string `json:"channels"`
}

// ChannelsForGroup lists the channels registered in a channel group.
type ChannelsForGroup struct{ transaction }

var _ pubkit.Endpoint[GroupParams, ChannelsResponse] = ChannelsForGroup{}

func (ChannelsForGroup) Operation() pubkit.Operation {
	return pubkit.PNChannelsForGroupOperation
}

func (ChannelsForGroup) Validate(cfg *config.Config, p GroupParams) string {
	return validate(cfg, p, keys{subscribe: true})
}

func (ChannelsForGroup) URL(cfg *config.Config, p GroupParams) string {
	return groupURL(cfg, p.ChannelGroup)
}

func (ChannelsForGroup) PrepareParams(*config.Config, GroupParams) url.Values {
	return url.Values{}
}

func (ChannelsForGroup) HandleResponse(_ *config.Config, payload []byte, _ GroupParams) (ChannelsResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return ChannelsResponse{}, err
	}
	return ChannelsResponse{Channels: strs(doc.Get("payload.channels"))}, nil
}

// GroupsResponse lists the channel groups of a subscribe key.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// ListGroups lists every channel group of the subscribe key. It takes no
// parameters.
type ListGroups struct{ transaction }

var _ pubkit.Endpoint[pubkit.Empty, GroupsResponse] = ListGroups{}

func (ListGroups) Operation() pubkit.Operation {
	return pubkit.PNChannelGroupsOperation
}

func (ListGroups) TakesParams() bool { return false }

func (ListGroups) Validate(cfg *config.Config, _ pubkit.Empty) string {
	return keys{subscribe: true}.missing(cfg)
}

func (ListGroups) URL(cfg *config.Config, _ pubkit.Empty) string {
	return channelRegistrationPath + cfg.SubscribeKey + "/channel-group"
}

func (ListGroups) PrepareParams(*config.Config, pubkit.Empty) url.Values {
	return url.Values{}
}

func (ListGroups) HandleResponse(_ *config.Config, payload []byte, _ pubkit.Empty) (GroupsResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return GroupsResponse{}, err
	}
	return GroupsResponse{Groups: strs(doc.Get("payload.groups"))}, nil
}

// RemoveGroup deletes a channel group.
type RemoveGroup struct{ transaction }

var _ pubkit.Endpoint[GroupParams, pubkit.Empty] = RemoveGroup{}

func (RemoveGroup) Operation() pubkit.Operation {
	return pubkit.PNRemoveGroupOperation
}

func (RemoveGroup) Validate(cfg *config.Config, p GroupParams) string {
	return validate(cfg, p, keys{subscribe: true})
}

func (RemoveGroup) URL(cfg *config.Config, p GroupParams) string {
	return groupURL(cfg, p.ChannelGroup) + "/remove"
}

func (RemoveGroup) PrepareParams(*config.Config, GroupParams) url.Values {
	return url.Values{}
}

func (RemoveGroup) HandleResponse(*config.Config, []byte, GroupParams) (pubkit.Empty, error) {
	return pubkit.Empty{}, nil
}
