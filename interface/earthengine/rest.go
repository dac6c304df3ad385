package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Expression is a graph of values evaluated by Earth Engine. Result is the key of the root value.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

// ValueNode is a node of an Expression. Exactly one field is set.
type ValueNode struct {
	ConstantValue           interface{}         `json:"constantValue,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
}

// ArrayValue is a list of values
type ArrayValue struct {
	Values []*ValueNode `json:"values"`
}

// FunctionInvocation calls an Earth Engine algorithm with named arguments
type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments"`
}

// ComputeValueRequest is the body of projects.value.compute
type ComputeValueRequest struct {
	Expression *Expression `json:"expression"`
}

// ComputeValueResponse is the response of projects.value.compute
type ComputeValueResponse struct {
	Result json.RawMessage `json:"result"`
}

// Thumbnail is the body and the response of projects.thumbnails.create
type Thumbnail struct {
	Name       string      `json:"name,omitempty"`
	Expression *Expression `json:"expression,omitempty"`
	FileFormat string      `json:"fileFormat,omitempty"`
}

// post sends body as JSON to {endpoint}/v1/{project}/{method} and decodes the response into resp.
// A non-2xx response is returned as a *googleapi.Error.
func (s *Session) post(ctx context.Context, method string, body, resp interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("post.Marshal: %w", err)
	}
	url := fmt.Sprintf("%s/v1/%s/%s", strings.TrimSuffix(s.Endpoint, "/"), s.Project, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("post.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := googleapi.CheckResponse(res); err != nil {
		return err
	}
	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("post.Decode: %w", err)
	}
	return nil
}

// computeValue calls projects.value.compute
func (s *Session) computeValue(ctx context.Context, expr *Expression) (json.RawMessage, error) {
	var resp ComputeValueResponse
	if err := s.post(ctx, "value:compute", &ComputeValueRequest{Expression: expr}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// createThumbnail calls projects.thumbnails.create and returns the name of the thumbnail
func (s *Session) createThumbnail(ctx context.Context, thumbnail *Thumbnail) (string, error) {
	var resp Thumbnail
	if err := s.post(ctx, "thumbnails", thumbnail, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}
