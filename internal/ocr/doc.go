// Package ocr reads the caption printed next to a micrograph's scale bar
// using Tesseract (via gosseract/v2).
//
// Microscope software usually prints the bar's physical length ("50 µm",
// "0.5 mm", "200nm") directly above or below the bar. ReadScaleLabel crops a
// band around a detected bar, upsamples it and runs OCR on it; ParseScaleText
// turns the recognized text into a length in micrometres.
//
// # Prerequisites
//
// Tesseract and the language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// OCR is best effort. Callers treat any error as "label not read" and fall
// back to asking the user for the bar length.
package ocr
