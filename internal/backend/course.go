package backend

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edustack/coursechat/backend/internal/model/course"
)

// ListCourses fetches every course known to the backend.
func (c *Client) ListCourses(ctx context.Context) ([]course.Course, error) {
	var out []course.Course
	if err := c.doJSON(ctx, http.MethodGet, "/courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCourse registers a new course by name.
func (c *Client) CreateCourse(ctx context.Context, name string) (course.Course, error) {
	var out course.Course
	if err := c.doJSON(ctx, http.MethodPost, "/courses", map[string]string{"name": name}, &out); err != nil {
		return course.Course{}, err
	}
	return out, nil
}

// UserCourses fetches the courses assigned to one user.
func (c *Client) UserCourses(ctx context.Context, userID string) ([]course.Course, error) {
	var out []course.Course
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+userID+"/courses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnassignedUsers lists users not yet assigned to the course.
func (c *Client) UnassignedUsers(ctx context.Context, courseID string) ([]course.User, error) {
	var out []course.User
	if err := c.doJSON(ctx, http.MethodGet, "/courses/"+courseID+"/unassigned-users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignCourse links a user to a course.
func (c *Client) AssignCourse(ctx context.Context, userID, courseID string) error {
	req := map[string]string{"user_id": userID, "course_id": courseID}
	return c.doJSON(ctx, http.MethodPost, "/users/assign-course", req, nil)
}

// RegisterUser creates a user account.
func (c *Client) RegisterUser(ctx context.Context, name, groupID string) (course.User, error) {
	req := map[string]string{"name": name, "group_id": groupID}
	var out course.User
	if err := c.doJSON(ctx, http.MethodPost, "/users/register", req, &out); err != nil {
		return course.User{}, err
	}
	return out, nil
}

// CourseFiles lists the processed documents attached to a course.
func (c *Client) CourseFiles(ctx context.Context, courseID string) ([]course.Document, error) {
	var out []course.Document
	if err := c.doJSON(ctx, http.MethodGet, "/courses/"+courseID+"/files", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadDocument streams one file to the backend's ingestion endpoint as
// multipart form data.
func (c *Client) UploadDocument(ctx context.Context, courseID, fileName string, file io.Reader) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(form, courseID, fileName, file)
		if closeErr := form.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-document", pr)
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload document")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Wrap(&StatusError{Code: resp.StatusCode, Body: readSnippet(resp.Body)}, "upload document")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func writeUploadForm(form *multipart.Writer, courseID, fileName string, file io.Reader) error {
	if err := form.WriteField("course_id", courseID); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// DeleteDocument removes a processed document and its index entries.
func (c *Client) DeleteDocument(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/delete-document/"+fileID, nil, nil)
}

// DownloadDocument streams a document's bytes. The caller owns the reader
// and must close it.
func (c *Client) DownloadDocument(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download-document/"+fileID, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "build download request")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "download document")
	}
	if resp.StatusCode != http.StatusOK {
		body := readSnippet(resp.Body)
		resp.Body.Close()
		return nil, "", errors.Wrap(&StatusError{Code: resp.StatusCode, Body: body}, "download document")
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// SubmitFeedback forwards user feedback to the backend.
func (c *Client) SubmitFeedback(ctx context.Context, payload map[string]any) error {
	return c.doJSON(ctx, http.MethodPost, "/feedback", payload, nil)
}
