// Command ctcdecode decodes CTC acoustic model output into text.
//
// Frame files hold one row per time step: whitespace-separated values in
// .txt files, or a JSON array of arrays (optionally under a "frames" key) in
// .json files. Manifests are tab-separated lines of frame file and
// reference transcript.
//
// Usage:
//
//	ctcdecode greedy FRAMES...
//	ctcdecode beam [--top N] FRAMES...
//	ctcdecode eval --manifest M [--greedy]
//	ctcdecode tune --manifest M --alphas 0,0.5,1 --betas 0,1,2
//	ctcdecode runs [--best] [--mode beam] [--limit N]
//	ctcdecode lm build [--order 3] [--output F] CORPUS...
//	ctcdecode lm fetch [--url U]
//	ctcdecode lm info MODEL
//	ctcdecode config init|validate
package main
