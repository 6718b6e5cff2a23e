package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/queue"
	"legal-assistant-platform/models"
	"legal-assistant-platform/services"
	"legal-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HandleDocumentUpload registers an uploaded document and enqueues its
// ingestion. The response returns immediately; processing is asynchronous.
func HandleDocumentUpload(cfg *config.Config, documentsCol *mongo.Collection, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("document")
		if err != nil {
			utils.RespondWithBadRequest(c, "No document file provided", nil)
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		if services.DocumentTypeFor(name) == "" {
			utils.RespondWithBadRequest(c, "Unsupported file type", gin.H{
				"supported": []string{".pdf", ".xlsx", ".html", ".htm", ".txt", ".md"},
			})
			return
		}
		if header.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		title := strings.TrimSpace(c.PostForm("title"))
		if title == "" {
			title = services.TitleFromFileName(name)
		}

		ctx := c.Request.Context()
		exists := documentsCol.FindOne(ctx, bson.M{"title": title})
		if exists.Err() == nil {
			utils.RespondWithConflict(c, "A document with this title is already registered", gin.H{"title": title})
			return
		}

		if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage directory", nil)
			return
		}

		path := filepath.Join(cfg.StorageDir, name)
		dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		doc := models.Document{
			Title:      title,
			FileName:   name,
			Status:     models.StatusPending,
			UploadedAt: time.Now().UTC(),
			Metadata: models.DocumentMetadata{
				Category:     c.PostForm("category"),
				Jurisdiction: c.PostForm("jurisdiction"),
				DocumentType: services.DocumentTypeFor(name),
				UploadedBy:   c.GetString("user_id"),
			},
		}
		result, err := documentsCol.InsertOne(ctx, doc)
		if err != nil {
			os.Remove(path)
			utils.RespondWithInternalError(c, "Failed to register document", nil)
			return
		}
		docID := result.InsertedID.(primitive.ObjectID)

		task, err := queue.NewIngestDocumentTask(docID.Hex(), name)
		if err == nil {
			_, err = queueClient.Enqueue(task)
		}
		if err != nil {
			os.Remove(path)
			documentsCol.DeleteOne(ctx, bson.M{"_id": docID})
			utils.RespondWithInternalError(c, "Failed to enqueue ingestion task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":     "Document accepted for ingestion",
			"document_id": docID.Hex(),
			"title":       title,
			"file_name":   name,
			"status":      models.StatusPending,
		})
	}
}

// ListDocuments returns registered documents with their ingestion status.
func ListDocuments(documentsCol *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageInt := 1
		limitInt := 20
		if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
			pageInt = p
		}
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && l > 0 && l <= 100 {
			limitInt = l
		}

		ctx := c.Request.Context()
		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			filter["status"] = status
		}

		cursor, err := documentsCol.Find(
			ctx,
			filter,
			options.Find().
				SetSort(bson.M{"uploaded_at": -1}).
				SetSkip(int64((pageInt-1)*limitInt)).
				SetLimit(int64(limitInt)),
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve documents", nil)
			return
		}
		defer cursor.Close(ctx)

		var docs []models.Document
		if err := cursor.All(ctx, &docs); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode documents", nil)
			return
		}

		total, err := documentsCol.CountDocuments(ctx, filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to count documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"pagination": gin.H{
				"page":        pageInt,
				"limit":       limitInt,
				"total":       total,
				"total_pages": (total + int64(limitInt) - 1) / int64(limitInt),
			},
		})
	}
}

// CheckDocumentStatus returns the ingestion status of one document.
func CheckDocumentStatus(documentsCol *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		var doc models.Document
		err = documentsCol.FindOne(c.Request.Context(), bson.M{"_id": docID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id":    doc.ID.Hex(),
			"title":          doc.Title,
			"file_name":      doc.FileName,
			"status":         doc.Status,
			"chunks_created": doc.ChunksCreated,
			"error_message":  doc.ErrorMessage,
			"uploaded_at":    doc.UploadedAt,
			"processed_at":   doc.ProcessedAt,
		})
	}
}

// HandleIngestAll enqueues a batch ingestion run over the storage directory.
func HandleIngestAll(queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := queue.NewIngestAllTask()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create batch task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue batch task", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Batch ingestion enqueued",
			"task_id": info.ID,
		})
	}
}

// HandleDedup runs a deduplication pass synchronously and reports how many
// chunks were removed.
func HandleDedup(maintenance *services.MaintenanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
		defer cancel()

		deleted, err := maintenance.RunDedup(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Deduplication failed", gin.H{"error": fmt.Sprint(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":        "Deduplication finished",
			"chunks_deleted": deleted,
		})
	}
}
