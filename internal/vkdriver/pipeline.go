package vkdriver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/hellovk/internal/mesh"
	"github.com/vkngwrapper/hellovk/internal/pipeline"
	"github.com/vkngwrapper/hellovk/internal/scope"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

var attributeFormats = map[int]core1_0.Format{
	2: core1_0.FormatR32G32SignedFloat,
	3: core1_0.FormatR32G32B32SignedFloat,
}

// CreateRenderPass creates a single-subpass pass that clears one color
// attachment of the given format and leaves it ready to present.
func (d *Device) CreateRenderPass(format swapchain.Format) (swapchain.RenderPass, error) {
	renderPass, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(format),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create render pass")
	}
	return swapchain.RenderPass(d.renderPasses.put(renderPass)), nil
}

func (d *Device) DestroyRenderPass(pass swapchain.RenderPass) {
	if rp, ok := d.renderPasses.drop(uint64(pass)); ok {
		d.driver.DestroyRenderPass(rp, nil)
	}
}

func vertexInput() *core1_0.PipelineVertexInputStateCreateInfo {
	var attributes []core1_0.VertexInputAttributeDescription
	for _, attr := range mesh.VertexAttributes {
		attributes = append(attributes, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: attr.Location,
			Format:   attributeFormats[attr.Components],
			Offset:   attr.Offset,
		})
	}

	return &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    mesh.VertexStride,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
		VertexAttributeDescriptions: attributes,
	}
}

// BuildPipeline creates the pipeline cache, seeded with cacheData when it is
// non-empty, and the graphics pipeline for pass. Viewport and scissor are
// dynamic so the pipeline survives swapchain rebuilds.
func (d *Device) BuildPipeline(pass swapchain.RenderPass, shaders pipeline.Shaders, cacheData []byte) error {
	if d.pipeline.Initialized() {
		return errors.AssertionFailedf("vkdriver: pipeline already built")
	}
	rp, ok := d.renderPasses.get(uint64(pass))
	if !ok {
		return errors.AssertionFailedf("vkdriver: unknown render pass %d", pass)
	}

	var rollback scope.Stack
	defer rollback.Release()

	cache, _, err := d.driver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: cacheData,
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline cache")
	}
	rollback.Push("pipeline cache", func() { d.driver.DestroyPipelineCache(cache, nil) })

	vertShader, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: shaders.Vertex,
	})
	if err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}
	defer d.driver.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: shaders.Fragment,
	})
	if err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}
	defer d.driver.DestroyShaderModule(fragShader, nil)

	layout, _, err := d.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}
	rollback.Push("pipeline layout", func() { d.driver.DestroyPipelineLayout(layout, nil) })

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology: core1_0.PrimitiveTopologyTriangleList,
	}

	// Counts only; the values are set per frame.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{Width: 1, Height: 1, MaxDepth: 1}},
		Scissors:  []core1_0.Rect2D{{Extent: core1_0.Extent2D{Width: 1, Height: 1}}},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    0,
		FrontFace:   core1_0.FrontFaceClockwise,
		LineWidth:   1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOp: core1_0.LogicOpCopy,
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:        true,
				SrcColorBlendFactor: core1_0.BlendFactorSrcAlpha,
				DstColorBlendFactor: core1_0.BlendFactorOneMinusSrcAlpha,
				ColorBlendOp:        core1_0.BlendOpAdd,
				SrcAlphaBlendFactor: core1_0.BlendFactorOne,
				DstAlphaBlendFactor: core1_0.BlendFactorZero,
				AlphaBlendOp:        core1_0.BlendOpAdd,
				ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	dynamic := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	pipelines, _, err := d.driver.CreateGraphicsPipelines(&cache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState:   vertexInput(),
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamic,
			Layout:             layout,
			RenderPass:         rp,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}

	rollback.Disarm()
	d.pipelineCache = cache
	d.pipelineLayout = layout
	d.pipeline = pipelines[0]
	d.pipelinePass = rp
	return nil
}

// PipelineCacheData returns the current contents of the pipeline cache, or
// nil if no pipeline was built.
func (d *Device) PipelineCacheData() ([]byte, error) {
	if !d.pipelineCache.Initialized() {
		return nil, nil
	}
	data, _, err := d.driver.GetPipelineCacheData(d.pipelineCache)
	if err != nil {
		return nil, errors.Wrap(err, "get pipeline cache data")
	}
	return data, nil
}

func (d *Device) destroyPipeline() {
	if d.pipeline.Initialized() {
		d.driver.DestroyPipeline(d.pipeline, nil)
		d.pipeline = core1_0.Pipeline{}
	}
	if d.pipelineLayout.Initialized() {
		d.driver.DestroyPipelineLayout(d.pipelineLayout, nil)
		d.pipelineLayout = core1_0.PipelineLayout{}
	}
	if d.pipelineCache.Initialized() {
		d.driver.DestroyPipelineCache(d.pipelineCache, nil)
		d.pipelineCache = core1_0.PipelineCache{}
	}
	d.pipelinePass = core1_0.RenderPass{}
}
