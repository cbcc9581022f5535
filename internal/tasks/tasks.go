package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered so image.Decode handles PNG uploads
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ronnjoshua/real-estate/internal/config"
	"github.com/ronnjoshua/real-estate/internal/email"
	"github.com/ronnjoshua/real-estate/internal/services"
	"github.com/ronnjoshua/real-estate/internal/storage"
)

// Task types.
const (
	TypeInvitationEmail = "email:deliver:invitation"
	TypeImageProcess    = "image:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// InvitationEmailPayload carries the invitation token; the handler re-reads
// the invitation so a stale payload never sends outdated data.
type InvitationEmailPayload struct {
	Token string `json:"token"`
}

// EnqueueInvitationEmail queues delivery of an invitation email.
func EnqueueInvitationEmail(ctx context.Context, client *asynq.Client, token string) error {
	payload, err := json.Marshal(InvitationEmailPayload{Token: token})
	if err != nil {
		return fmt.Errorf("failed to marshal invitation email payload: %w", err)
	}
	_, err = client.EnqueueContext(ctx, asynq.NewTask(TypeInvitationEmail, payload), asynq.Queue("critical"))
	return err
}

// ImageTaskPayload identifies an uploaded object and the property it belongs to.
type ImageTaskPayload struct {
	S3Key      string `json:"s3_key"`
	PropertyID string `json:"property_id"`
}

// EnqueueImageProcess queues normalization of an uploaded property image.
func EnqueueImageProcess(ctx context.Context, client *asynq.Client, s3Key, propertyID string) error {
	payload, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, PropertyID: propertyID})
	if err != nil {
		return fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	_, err = client.EnqueueContext(ctx, asynq.NewTask(TypeImageProcess, payload), asynq.Queue("images"))
	return err
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg               *config.Config
	emailSender       email.Sender
	storageService    storage.IS3Storage
	propertyService   services.IPropertyService
	invitationService services.IInvitationService
	s3Client          *s3.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	propertyService services.IPropertyService,
	invitationService services.IInvitationService,
	s3Client *s3.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:               cfg,
		emailSender:       emailSender,
		storageService:    storageService,
		propertyService:   propertyService,
		invitationService: invitationService,
		s3Client:          s3Client,
	}
}

// SetupServer configures an Asynq server with the handlers for the selected
// worker modes. The caller runs it. Returns nil in plain API mode.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeInvitationEmail, processor.HandleInvitationEmailTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// HandleInvitationEmailTask delivers an invitation email for the token in the
// payload. Unknown or already-used tokens are not retried.
func (p *TaskProcessor) HandleInvitationEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invitation email payload: %v: %w", err, asynq.SkipRetry)
	}

	invitation, err := p.invitationService.GetByToken(ctx, payload.Token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Invitation %s no longer exists, skipping email delivery", payload.Token)
			return fmt.Errorf("invitation not found: %w", asynq.SkipRetry)
		}
		return err
	}
	if invitation.IsUsed {
		log.Printf("Invitation for %s already used, skipping email delivery", invitation.Email)
		return nil
	}

	subject, rawMessage := email.BuildInvitationMessage(p.cfg, invitation)

	if err := p.emailSender.Send(ctx, []string{invitation.Email}, subject, rawMessage); err != nil {
		log.Printf("Invitation email to %s failed: %v", invitation.Email, err)
		return err
	}

	log.Printf("Invitation email delivered to %s", invitation.Email)
	return nil
}

// HandleImageProcessTask normalizes an uploaded property image: downloads it
// from S3, resizes when it exceeds the configured dimensions, re-uploads, and
// attaches the public URL to the property.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	propertyID, err := primitive.ObjectIDFromHex(payload.PropertyID)
	if err != nil {
		log.Printf("Invalid PropertyID in image task payload: %s", payload.PropertyID)
		return fmt.Errorf("invalid property ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, PropertyID=%s", payload.S3Key, payload.PropertyID)

	// 1. Download image from S3
	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data for key %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	// 2. Resize if the image exceeds the configured dimensions.
	maxWidth := uint(p.cfg.ImageMaxDimension)
	maxHeight := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxWidth || uint(img.Bounds().Dy()) > maxHeight

	processedImageData := imgData
	contentType := "image/" + format
	if getObjectOutput.ContentType != nil {
		contentType = *getObjectOutput.ContentType
	}

	if needsResize {
		log.Printf("Resizing image %s (original: %dx%d, max: %dx%d)", payload.S3Key, img.Bounds().Dx(), img.Bounds().Dy(), maxWidth, maxHeight)
		resizedImg := resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image %s: %w", payload.S3Key, err)
		}
		processedImageData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		if int64(len(processedImageData)) > maxSizeBytes {
			log.Printf("Resized image %s still exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(processedImageData), maxSizeBytes)
			return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
		}
	}

	// 3. Upload processed image (overwrite original).
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(payload.S3Key),
		Body:        bytes.NewReader(processedImageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload processed image %s: %w", payload.S3Key, err)
	}

	// 4. Attach the public URL to the property.
	imageURL := p.storageService.ObjectURL(payload.S3Key)
	if err := p.propertyService.AddImageToProperty(ctx, propertyID, imageURL); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Property %s deleted before image %s finished processing", payload.PropertyID, payload.S3Key)
			return fmt.Errorf("property not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to update property with processed image: %w", err)
	}

	log.Printf("Image task processed successfully: Key=%s, PropertyID=%s", payload.S3Key, payload.PropertyID)
	return nil
}
