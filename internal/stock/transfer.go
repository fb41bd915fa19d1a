package stock

import (
	"fmt"

	"magaza-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransferInput struct {
	ProductID    uint
	ProductName  string
	FromBranchID uint
	FromName     string
	ToBranchID   uint
	ToName       string
	Quantity     int
	Reason       string
	UserID       uint
	UserName     string
}

type TransferResult struct {
	TransferCode  string
	SourceStock   int
	TargetStock   int
	BatchesOpened int // hedefte açılan parti sayısı
}

// Transfer: Şubeler arası stok transferi, tek transaction.
// Kaynakta FIFO tüketilen her lot, hedefte AYNI birim maliyetle yeni parti
// olarak açılır; maliyet tabanı şube değiştirse de korunur. İki sayaç,
// partiler ve aynı kodu paylaşan iki kardex satırı birlikte commit olur.
func Transfer(db *gorm.DB, in TransferInput) (*TransferResult, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("transfer miktarı pozitif olmalı")
	}
	if in.FromBranchID == in.ToBranchID {
		return nil, fmt.Errorf("kaynak ve hedef şube aynı olamaz")
	}

	transferCode := uuid.NewString()
	reason := in.Reason
	if reason == "" {
		reason = "transfer"
	}

	var result *TransferResult
	err := db.Transaction(func(tx *gorm.DB) error {
		// Deadlock olmasın diye sayaçlar her zaman küçük şube ID'sinden
		// büyüğe doğru kilitlenir.
		var srcPrev, srcNext, dstPrev, dstNext int
		var txErr error
		if in.FromBranchID < in.ToBranchID {
			if srcPrev, srcNext, txErr = AdjustLocked(tx, in.ProductID, in.FromBranchID, -in.Quantity); txErr != nil {
				return txErr
			}
			if dstPrev, dstNext, txErr = AdjustLocked(tx, in.ProductID, in.ToBranchID, in.Quantity); txErr != nil {
				return txErr
			}
		} else {
			if dstPrev, dstNext, txErr = AdjustLocked(tx, in.ProductID, in.ToBranchID, in.Quantity); txErr != nil {
				return txErr
			}
			if srcPrev, srcNext, txErr = AdjustLocked(tx, in.ProductID, in.FromBranchID, -in.Quantity); txErr != nil {
				return txErr
			}
		}

		plan, txErr := ConsumeFIFO(tx, in.ProductID, in.FromBranchID, in.Quantity)
		if txErr != nil {
			return txErr
		}

		// Tüketilen her lot hedefte orijinal maliyetiyle yeniden doğar
		for _, p := range plan {
			if _, txErr = AddBatch(tx, BatchInput{
				ProductID:      in.ProductID,
				BranchID:       in.ToBranchID,
				Quantity:       p.Quantity,
				UnitCost:       p.UnitCost,
				ReceivedByID:   in.UserID,
				ReceivedByName: in.UserName,
			}); txErr != nil {
				return txErr
			}
		}

		if _, txErr = RecordMovement(tx, MovementInput{
			BranchID:     in.FromBranchID,
			BranchName:   in.FromName,
			ProductID:    in.ProductID,
			ProductName:  in.ProductName,
			Kind:         models.MovementTransfer,
			Quantity:     -in.Quantity,
			PrevStock:    srcPrev,
			NewStock:     srcNext,
			Reason:       fmt.Sprintf("%s → %s", reason, in.ToName),
			TransferCode: &transferCode,
			UserID:       in.UserID,
			UserName:     in.UserName,
		}); txErr != nil {
			return txErr
		}

		if _, txErr = RecordMovement(tx, MovementInput{
			BranchID:     in.ToBranchID,
			BranchName:   in.ToName,
			ProductID:    in.ProductID,
			ProductName:  in.ProductName,
			Kind:         models.MovementTransfer,
			Quantity:     in.Quantity,
			PrevStock:    dstPrev,
			NewStock:     dstNext,
			Reason:       fmt.Sprintf("%s ← %s", models.ReasonTransferReceived, in.FromName),
			TransferCode: &transferCode,
			UserID:       in.UserID,
			UserName:     in.UserName,
		}); txErr != nil {
			return txErr
		}

		result = &TransferResult{
			TransferCode:  transferCode,
			SourceStock:   srcNext,
			TargetStock:   dstNext,
			BatchesOpened: len(plan),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
