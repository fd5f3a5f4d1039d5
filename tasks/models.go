package tasks

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/IceBotYT/noonlight"
	"github.com/IceBotYT/noonlight/internal/validation"
)

// PointOfInterest is a bounding box inside an image. The origin is the top
// left corner, x grows right and y grows down. All values are pixels.
type PointOfInterest struct {
	X  int `json:"x" yaml:"x" validate:"gte=0"`
	DX int `json:"dx" yaml:"dx" validate:"gte=0"`
	Y  int `json:"y" yaml:"y" validate:"gte=0"`
	DY int `json:"dy" yaml:"dy" validate:"gte=0"`
}

func NewPointOfInterest(x, dx, y, dy int) (PointOfInterest, error) {
	p := PointOfInterest{X: x, DX: dx, Y: y, DY: dy}
	if err := validation.Struct("PointOfInterest", p); err != nil {
		return PointOfInterest{}, err
	}
	return p, nil
}

// Image is a still shown to the verifier.
type Image struct {
	URL              string            `json:"url" yaml:"url" validate:"required,hosturl"`
	MediaType        string            `json:"media_type" yaml:"media_type" validate:"required,oneof=image/jpeg image/png image/jpg"`
	PointsOfInterest []PointOfInterest `json:"points_of_interest" yaml:"points_of_interest" validate:"dive"`
}

func NewImage(url, mediaType string, points ...PointOfInterest) (Image, error) {
	img := Image{URL: url, MediaType: mediaType, PointsOfInterest: points}
	if img.PointsOfInterest == nil {
		img.PointsOfInterest = []PointOfInterest{}
	}
	if err := img.Validate(); err != nil {
		return Image{}, err
	}
	return img, nil
}

func (i Image) Validate() error { return validation.Struct("Image", i) }

// Video is shown to the verifier. MP4 uses video/mp4, HLS application/x-mpegURL.
type Video struct {
	URL       string `json:"url" yaml:"url" validate:"required,hosturl"`
	MediaType string `json:"media_type" yaml:"media_type" validate:"required,oneof=video/mp4 application/x-mpegURL"`
}

func NewVideo(url, mediaType string) (Video, error) {
	v := Video{URL: url, MediaType: mediaType}
	if err := v.Validate(); err != nil {
		return Video{}, err
	}
	return v, nil
}

func (v Video) Validate() error { return validation.Struct("Video", v) }

// AttachmentKind tells which case of Attachments is set.
type AttachmentKind int

const (
	NoAttachment AttachmentKind = iota
	ImageList
	SingleVideo
)

// Attachments is either a list of images or a single video. It encodes as a
// JSON array or a JSON object respectively.
type Attachments struct {
	kind   AttachmentKind
	images []Image
	video  Video
}

// ImageAttachments wraps images. At least one image is required when the
// task is validated.
func ImageAttachments(images ...Image) Attachments {
	return Attachments{kind: ImageList, images: images}
}

func VideoAttachment(v Video) Attachments {
	return Attachments{kind: SingleVideo, video: v}
}

func (a Attachments) Kind() AttachmentKind { return a.kind }

func (a Attachments) Images() []Image { return a.images }

func (a Attachments) Video() (Video, bool) { return a.video, a.kind == SingleVideo }

func (a Attachments) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case ImageList:
		if a.images == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.images)
	case SingleVideo:
		return json.Marshal(a.video)
	}
	return []byte("null"), nil
}

func (a Attachments) validate() error {
	switch a.kind {
	case ImageList:
		if len(a.images) == 0 {
			break
		}
		errs := make([]error, 0, len(a.images))
		for i, img := range a.images {
			errs = append(errs, validation.Prefix("attachments["+strconv.Itoa(i)+"]", img.Validate()))
		}
		return validation.Merge("VerificationData", errs...)
	case SingleVideo:
		return validation.Prefix("attachments", a.video.Validate())
	}
	return &noonlight.ValidationError{
		Model:  "VerificationData",
		Fields: []noonlight.FieldError{{Field: "attachments", Message: "is required"}},
	}
}

// VerificationData asks a verifier to answer a yes/no Prompt about the
// attachments within Expiration seconds.
type VerificationData struct {
	ID          string      `json:"id,omitempty"`
	OwnerID     string      `json:"owner_id,omitempty"`
	LocationID  string      `json:"location_id,omitempty"`
	DeviceID    string      `json:"device_id,omitempty"`
	Prompt      string      `json:"prompt" validate:"required"`
	Expiration  int         `json:"expiration" validate:"gt=0"`
	Attachments Attachments `json:"attachments" validate:"-"`
	WebhookURL  string      `json:"webhook_url,omitempty" validate:"omitempty,hosturl"`
}

func (d VerificationData) Validate() error {
	return validation.Merge("VerificationData",
		validation.Struct("VerificationData", d),
		d.Attachments.validate(),
	)
}

type expiration struct {
	Timeout int `json:"timeout"`
}

type verificationPayload struct {
	ID          string      `json:"id,omitempty"`
	OwnerID     string      `json:"owner_id,omitempty"`
	LocationID  string      `json:"location_id,omitempty"`
	DeviceID    string      `json:"device_id,omitempty"`
	Prompt      string      `json:"prompt"`
	Expiration  expiration  `json:"expiration"`
	Attachments Attachments `json:"attachments"`
	WebhookURL  string      `json:"webhook_url,omitempty"`
}

func (d VerificationData) payload() verificationPayload {
	return verificationPayload{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		LocationID:  d.LocationID,
		DeviceID:    d.DeviceID,
		Prompt:      d.Prompt,
		Expiration:  expiration{Timeout: d.Expiration},
		Attachments: d.Attachments,
		WebhookURL:  d.WebhookURL,
	}
}

var errNoTimeout = errors.New("response has no expiration timeout")

// TaskResponse is the created task as the service echoes it back.
// Attachments are kept raw since the service reshapes them.
type TaskResponse struct {
	ID          string                 `json:"id"`
	Prompt      string                 `json:"prompt"`
	Expiration  map[string]json.Number `json:"expiration"`
	Attachments json.RawMessage        `json:"attachments"`
	WebhookURL  string                 `json:"webhook_url"`
}

// Timeout returns expiration.timeout in seconds. The service sends it either
// as a number or as a numeric string.
func (r TaskResponse) Timeout() (int, error) {
	n, ok := r.Expiration["timeout"]
	if !ok {
		return 0, errNoTimeout
	}
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
