package inference

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider selects the ONNX Runtime execution provider.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML uses Apple CoreML for macOS/iOS acceleration.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// Providers lists the supported execution providers.
var Providers = []Provider{ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderOpenVINO}

// DefaultOpenVINODevice is the OpenVINO device type used when none is configured.
const DefaultOpenVINODevice = "CPU"

// applyProvider enables the execution provider named by opts on session options. The
// empty provider and ProviderCPU leave the options unchanged.
//
// Arguments:
//   - options: The session options to configure.
//   - opts: Provider, DeviceID (CUDA and OpenVINO) and DeviceType (OpenVINO).
//
// Returns:
//   - error: An error if the provider is unknown or cannot be enabled.
func applyProvider(options *ort.SessionOptions, opts Options) error {
	switch opts.Provider {
	case "", ProviderCPU:
		return nil
	case ProviderCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "enable CoreML")
	case ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(openVINOOptions(opts.DeviceType, opts.DeviceID)), "enable OpenVINO")
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": fmt.Sprintf("%d", opts.DeviceID)}); err != nil {
			return errors.Wrap(err, "configure CUDA")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enable CUDA")
	default:
		return errors.Errorf("unsupported execution provider %q", opts.Provider)
	}
}

// openVINOOptions builds the OpenVINO provider options.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
func openVINOOptions(deviceType string, deviceID int) map[string]string {
	if deviceType == "" {
		deviceType = DefaultOpenVINODevice
	}
	return map[string]string{
		"device_type": strings.ToUpper(deviceType),
		"device_id":   fmt.Sprintf("%d", deviceID),
	}
}
