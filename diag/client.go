package diag

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	cc  grpc.ClientConnInterface
	own *grpc.ClientConn
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects lazily; errors surface on the first call.
func Dial(addr string) (*Client, error) {
	cc, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, own: cc}, nil
}

func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Reset(ctx context.Context) error {
	return c.cc.Invoke(ctx, methodReset, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}
