package rpcproto

import (
	"context"

	"google.golang.org/grpc"
)

// Error codes mirrored on the RPC responses, echoing spec.md §4 reply
// semantics: success unless the RPC transport itself failed.
const (
	Success   = 0
	RPCFailed = 1
)

// TextChatData is one chat message inside a text-chat notification,
// grounded on the original's TextChatData (msgid/msgcontent).
type TextChatData struct {
	MsgID      string `json:"msgid"`
	MsgContent string `json:"msgcontent"`
}

// AddFriendReq notifies a peer node that ApplyUID applied to friend ToUID.
// Icon/Sex/Nick carry the applicant's profile snapshot at apply time, so the
// receiving node can render the notification without its own round trip to
// C9. Grounded on the original's AddFriendReq / ChatGrpcClient::NotifyAddFriend.
type AddFriendReq struct {
	ApplyUID int64  `json:"applyuid"`
	ToUID    int64  `json:"touid"`
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Icon     string `json:"icon"`
	Sex      int32  `json:"sex"`
	Nick     string `json:"nick"`
}

// AddFriendRsp echoes the request's identifying fields plus an error code.
type AddFriendRsp struct {
	Error    int32 `json:"error"`
	ApplyUID int64 `json:"applyuid"`
	ToUID    int64 `json:"touid"`
}

// AuthFriendReq notifies a peer node that FromUID authorized ToUID's
// friend request, with Back carrying the requester's local nickname for
// the target (spec.md §4.6's `back` field).
type AuthFriendReq struct {
	FromUID int64  `json:"fromuid"`
	ToUID   int64  `json:"touid"`
	Back    string `json:"back"`
}

// AuthFriendRsp echoes the request's identifying fields plus an error code.
type AuthFriendRsp struct {
	Error   int32 `json:"error"`
	FromUID int64 `json:"fromuid"`
	ToUID   int64 `json:"touid"`
}

// TextChatMsgReq carries a batch of chat messages from FromUID to ToUID.
type TextChatMsgReq struct {
	FromUID  int64          `json:"fromuid"`
	ToUID    int64          `json:"touid"`
	TextMsgs []TextChatData `json:"textmsgs"`
}

// TextChatMsgRsp echoes the request's identifying fields, the message
// batch, and an error code.
type TextChatMsgRsp struct {
	Error    int32          `json:"error"`
	FromUID  int64          `json:"fromuid"`
	ToUID    int64          `json:"touid"`
	TextMsgs []TextChatData `json:"textmsgs"`
}

// ChatServer is the interface a chat node implements to receive inbound
// cross-node notifications (spec §4.9 "serves the three Notify* RPCs").
type ChatServer interface {
	NotifyAddFriend(context.Context, *AddFriendReq) (*AddFriendRsp, error)
	NotifyAuthFriend(context.Context, *AuthFriendReq) (*AuthFriendRsp, error)
	NotifyTextChatMsg(context.Context, *TextChatMsgReq) (*TextChatMsgRsp, error)
}

// RegisterChatServer wires srv's methods into s's RPC dispatch table, in
// the shape protoc-gen-go-grpc emits (_ServiceDesc, UnaryHandler).
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&chatServiceDesc, srv)
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpcproto.ChatService",
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "NotifyAddFriend",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(AddFriendReq)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ChatServer).NotifyAddFriend(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpcproto.ChatService/NotifyAddFriend"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ChatServer).NotifyAddFriend(ctx, req.(*AddFriendReq))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "NotifyAuthFriend",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(AuthFriendReq)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ChatServer).NotifyAuthFriend(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpcproto.ChatService/NotifyAuthFriend"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ChatServer).NotifyAuthFriend(ctx, req.(*AuthFriendReq))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "NotifyTextChatMsg",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(TextChatMsgReq)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ChatServer).NotifyTextChatMsg(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/rpcproto.ChatService/NotifyTextChatMsg"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ChatServer).NotifyTextChatMsg(ctx, req.(*TextChatMsgReq))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpcproto/service.proto",
}

// ChatClient is the stub surface rpcpool hands out to C8's outbound router,
// mirroring clusterpb.MemberClient's shape (one method per RPC, each taking
// a grpc.ClientConn-backed connection at construction).
type ChatClient interface {
	NotifyAddFriend(ctx context.Context, in *AddFriendReq, opts ...grpc.CallOption) (*AddFriendRsp, error)
	NotifyAuthFriend(ctx context.Context, in *AuthFriendReq, opts ...grpc.CallOption) (*AuthFriendRsp, error)
	NotifyTextChatMsg(ctx context.Context, in *TextChatMsgReq, opts ...grpc.CallOption) (*TextChatMsgRsp, error)
}

type chatClient struct {
	cc grpc.ClientConnInterface
}

// NewChatClient wraps a *grpc.ClientConn (or any grpc.ClientConnInterface)
// pulled from rpcpool as a typed ChatClient.
func NewChatClient(cc grpc.ClientConnInterface) ChatClient {
	return &chatClient{cc}
}

func (c *chatClient) NotifyAddFriend(ctx context.Context, in *AddFriendReq, opts ...grpc.CallOption) (*AddFriendRsp, error) {
	out := new(AddFriendRsp)
	if err := c.cc.Invoke(ctx, "/rpcproto.ChatService/NotifyAddFriend", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) NotifyAuthFriend(ctx context.Context, in *AuthFriendReq, opts ...grpc.CallOption) (*AuthFriendRsp, error) {
	out := new(AuthFriendRsp)
	if err := c.cc.Invoke(ctx, "/rpcproto.ChatService/NotifyAuthFriend", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) NotifyTextChatMsg(ctx context.Context, in *TextChatMsgReq, opts ...grpc.CallOption) (*TextChatMsgRsp, error) {
	out := new(TextChatMsgRsp)
	if err := c.cc.Invoke(ctx, "/rpcproto.ChatService/NotifyTextChatMsg", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
