package compilatio

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

const documentIDParam = "document's ID"

// SendDoc uploads content as a new document and returns its identifier.
func (c *Client) SendDoc(ctx context.Context, title, filename, content string) (string, error) {
	if err := ValidateString(title, "title"); err != nil {
		return "", err
	}
	if err := ValidateString(filename, "filename"); err != nil {
		return "", err
	}
	if err := ValidateString(content, "content"); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("send document: build form: %w", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return "", fmt.Errorf("send document: build form: %w", err)
	}
	if err := mw.WriteField("filename", filename); err != nil {
		return "", fmt.Errorf("send document: build form: %w", err)
	}
	if err := mw.WriteField("title", title); err != nil {
		return "", fmt.Errorf("send document: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("send document: build form: %w", err)
	}

	var data struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
	}
	err = c.call(ctx, request{
		op:          "send document",
		method:      http.MethodPost,
		path:        "/api/document/",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, http.StatusCreated, &data)
	if err != nil {
		return "", err
	}
	return data.Document.ID, nil
}

// GetDoc fetches a document and derives its analysis status.
func (c *Client) GetDoc(ctx context.Context, id string) (*Document, error) {
	if err := ValidateString(id, documentIDParam); err != nil {
		return nil, err
	}
	var data struct {
		Document remoteDocument `json:"document"`
	}
	err := c.call(ctx, request{
		op:     "get document",
		method: http.MethodGet,
		path:   documentPath(id, ""),
	}, http.StatusOK, &data)
	if err != nil {
		return nil, err
	}

	doc := data.Document
	status, err := MapStatus(doc.Analyses[recipeName], doc.LightReports[recipeName])
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &Document{Properties: doc.properties(), Status: status}, nil
}

// GetReportURL returns the URL of the analysis report of a document.
func (c *Client) GetReportURL(ctx context.Context, id string) (string, error) {
	if err := ValidateString(id, documentIDParam); err != nil {
		return "", err
	}
	var data struct {
		URL string `json:"url"`
	}
	err := c.call(ctx, request{
		op:     "get report url",
		method: http.MethodGet,
		path:   documentPath(id, "/report-url"),
	}, http.StatusOK, &data)
	if err != nil {
		return "", err
	}
	return data.URL, nil
}

// DeleteDoc removes a document from the account. Indexed documents are refused by
// the service.
func (c *Client) DeleteDoc(ctx context.Context, id string) error {
	if err := ValidateString(id, documentIDParam); err != nil {
		return err
	}
	return c.call(ctx, request{
		op:     "delete document",
		method: http.MethodDelete,
		path:   documentPath(id, ""),
	}, http.StatusOK, nil)
}

// StartAnalysis queues a similarity analysis of a document.
func (c *Client) StartAnalysis(ctx context.Context, id string) error {
	if err := ValidateString(id, documentIDParam); err != nil {
		return err
	}
	body, err := jsonBody(map[string]string{
		"doc_id":      id,
		"recipe_name": recipeName,
	})
	if err != nil {
		return fmt.Errorf("start analysis: %w", err)
	}
	return c.call(ctx, request{
		op:     "start analysis",
		method: http.MethodPost,
		path:   "/api/analysis/",
		body:   body,
	}, http.StatusCreated, nil)
}

// GetIndexingState reports whether a document is part of the comparison corpus.
func (c *Client) GetIndexingState(ctx context.Context, id string) (bool, error) {
	if err := ValidateString(id, documentIDParam); err != nil {
		return false, err
	}
	var data struct {
		Document struct {
			Indexed bool `json:"indexed"`
		} `json:"document"`
	}
	err := c.call(ctx, request{
		op:     "get indexing state",
		method: http.MethodGet,
		path:   documentPath(id, ""),
	}, http.StatusOK, &data)
	if err != nil {
		return false, err
	}
	return data.Document.Indexed, nil
}

// SetIndexingState adds or removes a document from the comparison corpus.
func (c *Client) SetIndexingState(ctx context.Context, id string, indexed bool) error {
	if err := ValidateString(id, documentIDParam); err != nil {
		return err
	}
	body, err := jsonBody(map[string]bool{"indexed": indexed})
	if err != nil {
		return fmt.Errorf("set indexing state: %w", err)
	}
	return c.call(ctx, request{
		op:     "set indexing state",
		method: http.MethodPatch,
		path:   documentPath(id, ""),
		body:   body,
	}, http.StatusOK, nil)
}
