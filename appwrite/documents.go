package appwrite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type document map[string]interface{}

func parseDocument(raw []byte) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document is null")
	}
	return doc, nil
}

func documentId(raw []byte) (string, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return "", err
	}
	id := doc.str("$id")
	if id == "" {
		return "", errors.New("document has no $id")
	}
	return id, nil
}

// str returns a string attribute. Missing or non-string values read as "".
func (d document) str(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func (d document) timePtr(key string) *time.Time {
	s := d.str(key)
	if s == "" {
		return nil
	}
	t, err := utils.ParseTime(s)
	if err != nil {
		return nil
	}
	return &t
}

func (d document) timeVal(key string) time.Time {
	if t := d.timePtr(key); t != nil {
		return *t
	}
	return time.Time{}
}

// DecodeOrder maps an order document. A missing status decodes as the empty
// status. A missing, unreadable or negative amount decodes as zero so the
// record still counts everywhere except amount sums; only a document without
// an id is rejected.
func DecodeOrder(raw []byte) (models.OrderRecord, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return models.OrderRecord{}, err
	}
	id := doc.str("$id")
	if id == "" {
		return models.OrderRecord{}, errors.New("order document has no $id")
	}
	amount, err := utils.ParseAmount(doc["amount"])
	if err == nil && amount.IsNegative() {
		err = fmt.Errorf("negative amount %s", amount)
	}
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"module":      moduleName,
			"document_id": id,
			"amount":      doc["amount"],
		}).Warnf("order amount counted as zero: %v", err)
		amount = decimal.Zero
	}
	return models.OrderRecord{
		DocumentId:   id,
		OrderId:      doc.str("order_id"),
		Description:  doc.str("description"),
		Amount:       amount,
		Status:       models.OrderStatus(doc.str("status")),
		Platform:     doc.str("platform"),
		OrderDate:    doc.timePtr("order_date"),
		ReturnReason: doc.str("return_reason"),
		CreatedAt:    doc.timeVal("$createdAt"),
	}, nil
}

func DecodeProduct(raw []byte) (models.Product, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return models.Product{}, err
	}
	id := doc.str("$id")
	if id == "" {
		return models.Product{}, errors.New("product document has no $id")
	}
	price, err := utils.ParseAmount(doc["price"])
	if err != nil {
		return models.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	stock, err := intAttr(doc["stock"])
	if err != nil {
		return models.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return models.Product{
		DocumentId: id,
		UserId:     doc.str("user_id"),
		Name:       doc.str("name"),
		Category:   doc.str("category"),
		Stock:      stock,
		Price:      price,
		CreatedAt:  doc.timeVal("$createdAt"),
	}, nil
}

func DecodeProfile(raw []byte) (*models.Profile, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	pin := doc.str("pinCode")
	if pin == "" {
		// some profiles were saved with a numeric pin
		if n, ok := doc["pinCode"].(json.Number); ok {
			pin = n.String()
		}
	}
	return &models.Profile{
		DocumentId: doc.str("$id"),
		UserId:     doc.str("user_id"),
		Name:       doc.str("name"),
		PinCode:    pin,
		CreatedAt:  doc.timeVal("$createdAt"),
	}, nil
}

func intAttr(v interface{}) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int(math.Floor(f)), nil
	case float64:
		return int(math.Floor(n)), nil
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("invalid integer %v", v)
	}
}
